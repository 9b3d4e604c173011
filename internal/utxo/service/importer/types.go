package importer

import (
	"context"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-chainstore/internal/utxo/repository/sqlstore"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Node interface {
		GetBlockCount() (int64, error)
		GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
		GetBlock(blockHash *chainhash.Hash) (*wire.MsgBlock, error)
	}
	Store interface {
		Head(ctx context.Context) (*model.Block, error)
		PersistBlock(ctx context.Context, blk *wire.MsgBlock, chain model.Chain, depth int64, parentWork *big.Int) (int64, model.Chain, error)
		UpdateBlocks(ctx context.Context, updates []sqlstore.BlockUpdate) error
	}
	Metrics interface {
		ObserveBlock(err error, depth int64, started time.Time)
		ObserveReorg()
	}
)
