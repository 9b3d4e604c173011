package deferred

import "time"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		ObserveQueued(task string, err error)
		ObserveTask(task string, err error, started time.Time)
		ObserveBatch(size int)
	}
)
