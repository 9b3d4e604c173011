// Package importer keeps the store's main chain in step with a node.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/repository/sqlstore"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = time.Minute
)

// Service imports node blocks as MAIN at their height. The node decides the
// best chain: when the stored tip is no longer on it, the tip is moved to
// SIDE and the import resumes from its parent.
type Service struct {
	logger       *zap.Logger
	node         Node
	store        Store
	metrics      Metrics
	sleep        func(context.Context, time.Duration) error
	pollInterval time.Duration
}

// NewService builds a Service. A zero pollInterval uses the default.
func NewService(node Node, store Store, metrics Metrics, logger *zap.Logger, pollInterval time.Duration) (*Service, error) {
	if node == nil {
		return nil, errors.New("node client is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if metrics == nil {
		return nil, errors.New("importer metrics is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Service{
		logger:       logger,
		node:         node,
		store:        store,
		metrics:      metrics,
		sleep:        clock.Sleep,
		pollInterval: pollInterval,
	}, nil
}

// Run imports until ctx is canceled. Failures are logged and retried with backoff.
func (s *Service) Run(ctx context.Context) error {
	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		progressed, err := s.step(ctx)
		switch {
		case err != nil:
			backoff = clock.Backoff(backoff, maxBackoff)
			s.logger.Warn("import step failed, backing off", zap.Error(err), zap.Duration("sleep", backoff))
			if err := s.sleep(ctx, backoff); err != nil {
				return err
			}
		case !progressed:
			backoff = 0
			s.logger.Debug("caught up with node", zap.Duration("sleep", s.pollInterval))
			if err := s.sleep(ctx, s.pollInterval); err != nil {
				return err
			}
		default:
			backoff = 0
		}
	}
}

// step imports or rolls back one block. It reports false when the store
// already matches the node tip.
func (s *Service) step(ctx context.Context) (bool, error) {
	head, err := s.store.Head(ctx)
	if err != nil {
		return false, fmt.Errorf("load head: %w", err)
	}

	next := int64(0)
	if head != nil {
		hash, err := s.node.GetBlockHash(head.Depth)
		if err != nil {
			return false, fmt.Errorf("node hash at %d: %w", head.Depth, err)
		}
		if *hash != head.Hash {
			return true, s.demote(ctx, head)
		}
		next = head.Depth + 1
	}

	count, err := s.node.GetBlockCount()
	if err != nil {
		return false, fmt.Errorf("node block count: %w", err)
	}
	if next > count {
		return false, nil
	}

	started := time.Now()
	err = s.importBlock(ctx, head, next)
	s.metrics.ObserveBlock(err, next, started)
	return err == nil, err
}

func (s *Service) importBlock(ctx context.Context, head *model.Block, depth int64) error {
	hash, err := s.node.GetBlockHash(depth)
	if err != nil {
		return fmt.Errorf("node hash at %d: %w", depth, err)
	}
	blk, err := s.node.GetBlock(hash)
	if err != nil {
		return fmt.Errorf("node block %s: %w", hash, err)
	}

	if head == nil {
		_, _, err = s.store.PersistBlock(ctx, blk, model.ChainMain, depth, nil)
	} else {
		if blk.Header.PrevBlock != head.Hash {
			// The node reorganized between calls; the next step demotes the tip.
			return fmt.Errorf("block %s at %d does not extend %s", hash, depth, head.Hash)
		}
		_, _, err = s.store.PersistBlock(ctx, blk, model.ChainMain, depth, head.Work)
	}
	if err != nil {
		return err
	}
	s.logger.Info("imported block", zap.Stringer("hash", hash), zap.Int64("depth", depth), zap.Int("txs", len(blk.Transactions)))
	return nil
}

func (s *Service) demote(ctx context.Context, head *model.Block) error {
	side := model.ChainSide
	err := s.store.UpdateBlocks(ctx, []sqlstore.BlockUpdate{{
		Hashes: []chainhash.Hash{head.Hash},
		Chain:  &side,
	}})
	if err != nil {
		return fmt.Errorf("demote %s: %w", head.Hash, err)
	}
	s.metrics.ObserveReorg()
	s.logger.Warn("tip left the node's chain, moved to side", zap.Stringer("hash", head.Hash), zap.Int64("depth", head.Depth))
	return nil
}
