package sqlstore

// Option configures a Repository.
type Option func(*Repository)

// WithHeadCache keeps the chain head in memory, refreshed whenever a MAIN
// block is persisted. Without it Head always queries the database.
func WithHeadCache(enabled bool) Option {
	return func(r *Repository) {
		r.cacheHead = enabled
	}
}

// WithValidator sets the validator used by StoreTransaction.
func WithValidator(v Validator) Option {
	return func(r *Repository) {
		r.validator = v
	}
}

// WithScheduler sets the scheduler that receives orphan reconnection work
// exceeding the inline limit.
func WithScheduler(s Scheduler) Option {
	return func(r *Repository) {
		r.scheduler = s
	}
}

// WithPlacer overrides the default ParentPlacer.
func WithPlacer(p Placer) Option {
	return func(r *Repository) {
		if p != nil {
			r.placer = p
		}
	}
}

// WithInlineReconnectLimit bounds how many orphans one call reconnects before
// handing the rest to the scheduler. Zero or less removes the bound.
func WithInlineReconnectLimit(n int) Option {
	return func(r *Repository) {
		if n <= 0 {
			n = -1
		}
		r.inlineReconnectLimit = n
	}
}

// WithBatchSize sets the row count of bulk inserts and IN queries.
func WithBatchSize(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.batchSize = n
		}
	}
}
