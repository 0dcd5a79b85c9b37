// Command migrate applies the SQL migrations and can seed a demo event.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database/migrations"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	action := flag.String("action", "up", "one of up, down, steps, version, reset")
	steps := flag.Int("n", 1, "number of migrations for -action=steps, negative to go down")
	seed := flag.Bool("seed", false, "insert a demo event and participants after migrating")
	flag.Parse()

	log := logger.NewLogger("migrate")
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	runner := migrations.NewRunner(cfg.Database.DSN, cfg.Database.MigrationsDir, log)
	defer runner.Close()

	var err error
	switch *action {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	case "steps":
		err = runner.Steps(*steps)
	case "reset":
		// Drop everything, then rebuild.
		if err = runner.Down(); err == nil {
			err = runner.Up()
		}
	case "version":
		version, dirty, verr := runner.Version()
		if verr != nil {
			log.Fatal("MIGRATE", verr.Error())
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("✅ %s done", *action))

	if !*seed {
		return
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer db.Close()

	eventID, err := seedDemo(ctx, db)
	if err != nil {
		log.Fatal("SEED", err.Error())
	}
	log.Info("SEED", fmt.Sprintf("✅ Seeded demo event %s", eventID))
}
