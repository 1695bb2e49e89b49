package orchestratordb

import (
	"context"
	"log"

	mghelper "github.com/chainsafe/xchain-orchestrator/pkg/pgutil/migrations"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating chain_cursors table...")
		return mghelper.CreateSchema(ctx, db, &store.ChainCursorDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping chain_cursors table...")
		return mghelper.DropTables(ctx, db, &store.ChainCursorDao{})
	})
}
