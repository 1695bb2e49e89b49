// Package migrations holds the schema helpers and command runner shared by
// the migrate commands.
package migrations

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const usageText = `Usage:
  migrate -config <file> <command>

Commands:
  init     create the migration bookkeeping tables
  up       apply every pending migration
  down     roll back the last migration group
  status   list applied and pending migrations
`

// Usage prints the command usage and exits.
func Usage() {
	fmt.Fprint(os.Stderr, usageText)
	flag.PrintDefaults()
	os.Exit(2)
}

// Exitf prints the message and the usage, then exits.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	Usage()
}

// CreateSchema creates the tables of models if they do not exist.
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// DropTables drops the tables of models and everything depending on them.
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", model, err)
		}
	}
	return nil
}

// IndexName returns idx_<table>_<column> for the table of model.
func IndexName(db bun.IDB, model any, column string) (string, error) {
	table := db.NewCreateIndex().Model(model).GetTableName()
	if table == "" {
		return "", fmt.Errorf("no table for model %T", model)
	}
	table = strings.NewReplacer(`"`, "", ".", "_").Replace(table)
	return "idx_" + table + "_" + column, nil
}

// CreateModelIndexes creates one single-column index per column on the
// table of model, named by IndexName.
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	for _, column := range columns {
		name, err := IndexName(db, model, column)
		if err != nil {
			return err
		}
		if err := CreateModelCompositeIndex(ctx, db, model, name, false, column); err != nil {
			return err
		}
	}
	return nil
}

// CreateModelCompositeIndex creates one index named name spanning columns.
func CreateModelCompositeIndex(ctx context.Context, db bun.IDB, model any, name string, unique bool, columns ...string) error {
	q := db.NewCreateIndex().Model(model).Index(name).Column(columns...).IfNotExists()
	if unique {
		q = q.Unique()
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// RunMigrations executes the migrate command in args[0].
func RunMigrations(migrator *migrate.Migrator, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided")
	}
	ctx := context.Background()

	switch args[0] {
	case "init":
		if err := migrator.Init(ctx); err != nil {
			return err
		}
		log.Println("migration tables created")
		return nil

	case "up":
		return locked(ctx, migrator, func() error {
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Println("database is up to date")
				return nil
			}
			log.Printf("migrated to %s", group)
			return nil
		})

	case "down":
		return locked(ctx, migrator, func() error {
			group, err := migrator.Rollback(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Println("nothing to roll back")
				return nil
			}
			log.Printf("rolled back %s", group)
			return nil
		})

	case "status":
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		log.Printf("applied: %s", ms.Applied())
		log.Printf("pending: %s", ms.Unapplied())
		log.Printf("last group: %s", ms.LastGroup())
		return nil
	}
	return fmt.Errorf("unknown command: %s", args[0])
}

// locked runs fn while holding the migration lock.
func locked(ctx context.Context, migrator *migrate.Migrator, fn func() error) error {
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			log.Printf("failed to release migration lock: %v", err)
		}
	}()
	return fn()
}
