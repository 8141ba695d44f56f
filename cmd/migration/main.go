package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"gitlab.com/dirk.krummacker/contact-book/internal/config"
	"gitlab.com/dirk.krummacker/contact-book/internal/database"
	"gitlab.com/dirk.krummacker/contact-book/internal/logging"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 SESSION_SECRET=0123456789abcdef go run main.go
// > DB_DRIVER=sqlite3 DB_PATH=../../contactbook.db SESSION_SECRET=0123456789abcdef go run main.go -verify
func main() {
	verify := flag.Bool("verify", false, "only check that the database is reachable after migrating")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not load configuration:", err)
		os.Exit(1)
	}
	log := logging.New(true, "")
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal("could not open database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, log); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	if *verify {
		var users, contacts int
		if err := db.GetContext(ctx, &users, `SELECT COUNT(*) FROM users`); err != nil {
			log.Fatal("could not count users", zap.Error(err))
		}
		if err := db.GetContext(ctx, &contacts, `SELECT COUNT(*) FROM contacts`); err != nil {
			log.Fatal("could not count contacts", zap.Error(err))
		}
		log.Info("schema verified", zap.Int("users", users), zap.Int("contacts", contacts))
	}
	log.Info("database is up to date", zap.String("driver", cfg.DBDriver))
}
