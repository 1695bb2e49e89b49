package orchestratordb

import (
	"context"
	"log"

	mghelper "github.com/chainsafe/xchain-orchestrator/pkg/pgutil/migrations"
	"github.com/chainsafe/xchain-orchestrator/pkg/transfer/store"

	"github.com/uptrace/bun"
)

const sourceEventIndex = "idx_transfers_source_event"

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating transfers table...")
		if err := mghelper.CreateSchema(ctx, db, &store.TransferDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &store.TransferDao{}, "status", "owner_id", "next_attempt_at"); err != nil {
			return err
		}
		// a verified lock event backs exactly one transfer
		return mghelper.CreateModelCompositeIndex(ctx, db, &store.TransferDao{}, sourceEventIndex, true,
			"source_chain", "source_tx_hash", "source_log_index")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transfers table...")
		return mghelper.DropTables(ctx, db, &store.TransferDao{})
	})
}
