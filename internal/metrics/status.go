// Package metrics holds the prometheus collectors of the chain store services.
package metrics

const namespace = "chainstore"

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
