package database

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/AlexandroAurellino/live-shop-bot/logging"
)

// Sqlite is the application store: session settings and the product
// catalog live here so the bot survives restarts with its configuration
// intact.
type Sqlite struct {
	connections *sqlx.DB
	logger      *logging.Logger
}

//go:embed migrations/*.sql
var embedMigrations embed.FS

// NewSqlite opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func NewSqlite(path string, logger *logging.Logger) (*Sqlite, error) {
	if logger == nil {
		logger = logging.Default()
	}

	logger.Info("opening sqlite database", "path", path)
	dbx, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		logger.Error("error opening sqlite database", "error", err.Error())
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}

	logger.Debug("setting up migration system")
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		logger.Error("error setting dialect", "error", err.Error())
		return nil, fmt.Errorf("error setting dialect: %w", err)
	}

	logger.Info("running database migrations")
	if err := goose.Up(dbx.DB, "migrations"); err != nil {
		logger.Error("error running migrations", "error", err.Error())
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	logger.Debug("verifying database connection")
	if err := dbx.Ping(); err != nil {
		logger.Error("error pinging sqlite", "error", err.Error())
		return nil, fmt.Errorf("error pinging sqlite: %w", err)
	}

	logger.Info("database connection established successfully")
	return &Sqlite{
		connections: dbx,
		logger:      logger,
	}, nil
}

func (s *Sqlite) Close() {
	s.logger.Info("closing sqlite connection")
	s.connections.Close()
}
