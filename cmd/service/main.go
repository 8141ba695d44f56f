package main

import (
	"context"
	"fmt"
	"os"

	"gitlab.com/dirk.krummacker/contact-book/internal/config"
	"gitlab.com/dirk.krummacker/contact-book/internal/database"
	"gitlab.com/dirk.krummacker/contact-book/internal/logging"
	"gitlab.com/dirk.krummacker/contact-book/internal/service"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > PORT=8080 DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 SESSION_SECRET=0123456789abcdef GIN_MODE=release GIN_LOGGING=OFF go run main.go
// > DB_DRIVER=sqlite3 DB_PATH=contactbook.db SESSION_SECRET=0123456789abcdef LOG_DEV=true go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not load configuration:", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogDev, cfg.LogFile)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, log); err != nil {
		return err
	}

	server, err := service.New(cfg, db, log)
	if err != nil {
		return err
	}
	log.Info("starting contact book",
		zap.String("port", cfg.Port),
		zap.String("driver", cfg.DBDriver),
		zap.Duration("query_timeout", cfg.DBQueryTimeout))
	return server.SetupHttpRouter().Run(":" + cfg.Port)
}
