// Package sqlstore persists blocks, transactions and their address and name
// indexes in a relational database through gorm.
package sqlstore

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/script"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
	Classifier interface {
		Classify(pkScript []byte, position int) script.Classification
	}
	// Validator accepts or rejects a standalone transaction before it is stored.
	Validator interface {
		Validate(tx *wire.MsgTx) error
	}
	// Scheduler runs deferred work after the triggering call has returned.
	Scheduler interface {
		Defer(ctx context.Context, name string, task func(context.Context) error) error
	}
	// Placer decides where a reconnected orphan goes once its parent is stored.
	// Returning false leaves the block tagged as orphan. Place runs inside the
	// write transaction: repository reads made with its ctx see that
	// transaction, reads made with any other context block until it commits.
	Placer interface {
		Place(ctx context.Context, parent, orphan *model.Block) (Placement, bool, error)
	}
)

// Placement is the chain position assigned to a block.
type Placement struct {
	Chain      model.Chain
	Depth      int64
	ParentWork *big.Int
}

// ErrNotFound is returned when a mutation targets a row that does not exist.
var ErrNotFound = errors.New("not found")

const (
	defaultBatchSize            = 500
	defaultInlineReconnectLimit = 10_000
)

// Repository is the block and transaction persistence engine.
type Repository struct {
	db         *gorm.DB
	classifier Classifier
	metrics    Metrics
	logger     *zap.Logger

	validator Validator
	scheduler Scheduler
	placer    Placer

	batchSize            int
	inlineReconnectLimit int

	cacheHead bool
	headMu    sync.RWMutex
	head      *model.Block
}

// NewRepository builds a Repository on an open database handle. The schema
// must already exist.
func NewRepository(db *gorm.DB, classifier Classifier, metrics Metrics, logger *zap.Logger, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if classifier == nil {
		return nil, errors.New("script classifier is required")
	}
	if metrics == nil {
		return nil, errors.New("repository metrics is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Repository{
		db:                   db,
		classifier:           classifier,
		metrics:              metrics,
		logger:               logger,
		placer:               ParentPlacer{},
		batchSize:            defaultBatchSize,
		inlineReconnectLimit: defaultInlineReconnectLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DB returns the underlying database handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

type txKey struct{}

// withTx binds tx to ctx so that repository calls made with the returned
// context run inside tx instead of waiting for a pool connection.
func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func boundTx(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

// conn returns the transaction bound to ctx, or the pool handle.
func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := boundTx(ctx); ok {
		return tx.Session(&gorm.Session{NewDB: true, Context: ctx})
	}
	return r.db.WithContext(ctx)
}

// ParentPlacer puts an orphan directly after its parent on the parent's chain,
// leaving it orphaned while the parent is itself an orphan.
type ParentPlacer struct{}

// Place implements Placer.
func (ParentPlacer) Place(_ context.Context, parent, _ *model.Block) (Placement, bool, error) {
	if parent.Chain == model.ChainOrphan {
		return Placement{}, false, nil
	}
	return Placement{
		Chain:      parent.Chain,
		Depth:      parent.Depth + 1,
		ParentWork: parent.Work,
	}, true, nil
}
