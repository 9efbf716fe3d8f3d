// Command migrate manages the accounts and posts schema.
//
//	migrate up             apply pending SQL migrations
//	migrate auto           run GORM AutoMigrate
//	migrate status         show the schema plan and each migration
//	migrate down <version> revert the newest migration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"postbook/internal/bootstrap"
	"postbook/internal/config"
	"postbook/internal/database"

	"gorm.io/gorm"
)

const usage = "usage: migrate <up|auto|status|down <version>>"

var errUsage = errors.New(usage)

func main() {
	flag.Usage = func() { fmt.Fprintln(flag.CommandLine.Output(), usage) }
	flag.Parse()
	if err := run(flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipSchema: true, SkipRedis: true})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer bootstrap.Close(db, nil)

	switch args[0] {
	case "up":
		return up(ctx, db)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("auto-migrate complete")
		return nil
	case "status":
		return status(ctx, db, cfg)
	case "down":
		if len(args) != 2 {
			return errUsage
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("version %q: %w", args[1], err)
		}
		if err := database.NewMigrator(db).Down(ctx, version); err != nil {
			return err
		}
		log.Printf("reverted %06d", version)
		return nil
	default:
		return errUsage
	}
}

func up(ctx context.Context, db *gorm.DB) error {
	ran, err := database.NewMigrator(db).Up(ctx)
	for _, m := range ran {
		log.Printf("applied %s", m.ID())
	}
	if err != nil {
		return err
	}
	if len(ran) == 0 {
		log.Println("schema already current")
	}
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	st, err := database.Status(ctx, db, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("mode=%s env=%s sql=%t auto=%t pending=%d\n",
		st.Mode, st.Environment, st.SQL, st.AutoMigrate, len(st.Pending()))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, m := range st.Migrations {
		applied := "pending"
		if m.Applied {
			applied = m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\n", m.ID(), applied)
	}
	return w.Flush()
}
