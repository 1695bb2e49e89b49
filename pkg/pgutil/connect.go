// Package pgutil connects to PostgreSQL through bun and provides the
// container-backed fixtures used by database tests.
package pgutil

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/chainsafe/xchain-orchestrator/pkg/config"
)

const pingTimeout = 10 * time.Second

// ConnectDB opens a bun connection for cfg and verifies it with a ping.
func ConnectDB(cfg *config.DatabaseConfig) (*bun.DB, error) {
	connector := pgdriver.NewConnector(
		pgdriver.WithNetwork("tcp"),
		pgdriver.WithAddr(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.Database),
		pgdriver.WithInsecure(cfg.SSLMode == "disable"),
		pgdriver.WithApplicationName("xchain-orchestrator"),
	)
	db := bun.NewDB(sql.OpenDB(connector), pgdialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Database, err)
	}
	return db, nil
}
