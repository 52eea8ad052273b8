package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"

	_ "github.com/go-sql-driver/mysql"
)

const Schema = `CREATE TABLE IF NOT EXISTS reminders (
	owner      VARCHAR(64)  NOT NULL,
	id         VARCHAR(36)  NOT NULL,
	exam_id    VARCHAR(36)  NOT NULL,
	title      VARCHAR(255) NOT NULL,
	body       TEXT         NOT NULL,
	trigger_at DATETIME     NOT NULL,
	created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (owner, id),
	KEY idx_reminders_trigger (trigger_at)
) DEFAULT CHARSET=utf8mb4`

func NewConnection(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DatabaseDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.Database.ConnectionLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create reminders table: %w", err)
	}
	return nil
}
