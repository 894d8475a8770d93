package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/storage/models"
	"github.com/rulings-explorer/backend/pkg/logger"
	"github.com/rulings-explorer/backend/pkg/retry"
)

// Client is the audit log of exports and advanced searches.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

// Open creates the parent directory, then opens the store and prepares its
// schema under retry.
func Open(ctx context.Context, dbPath string, cfg retry.Config) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	return retry.DoValue(ctx, "sqlite open", cfg, func(ctx context.Context) (*Client, error) {
		c, err := NewClient(dbPath)
		if err != nil {
			return nil, err
		}
		if err := c.InitSchema(); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	})
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		filter TEXT NOT NULL,
		columns TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		client TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(created_at);

	CREATE TABLE IF NOT EXISTS searches (
		id TEXT PRIMARY KEY,
		terms TEXT NOT NULL,
		found INTEGER NOT NULL,
		client TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_searches_created ON searches(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertExport(ctx context.Context, rec *models.ExportRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	columns, err := json.Marshal(rec.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	query := `INSERT INTO exports (id, filter, columns, row_count, client, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = c.db.ExecContext(ctx, query,
		rec.ID,
		rec.Filter,
		string(columns),
		rec.Rows,
		rec.Client,
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert export: %w", err)
	}

	logger.Info("Export recorded", zap.String("export_id", rec.ID), zap.Int("rows", rec.Rows))
	return nil
}

func (c *Client) InsertSearch(ctx context.Context, rec *models.SearchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	terms, err := json.Marshal(rec.Terms)
	if err != nil {
		return fmt.Errorf("failed to marshal terms: %w", err)
	}

	query := `INSERT INTO searches (id, terms, found, client, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = c.db.ExecContext(ctx, query,
		rec.ID,
		string(terms),
		rec.Found,
		rec.Client,
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search: %w", err)
	}

	logger.Debug("Search recorded", zap.String("search_id", rec.ID), zap.Int("found", rec.Found))
	return nil
}

// RecentHistory returns up to limit of the newest exports and searches,
// newest first.
func (c *Client) RecentHistory(ctx context.Context, limit int) (*models.History, error) {
	if limit <= 0 {
		limit = 20
	}
	h := &models.History{
		Exports:  []models.ExportRecord{},
		Searches: []models.SearchRecord{},
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, filter, columns, row_count, COALESCE(client, ''), created_at FROM exports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	for rows.Next() {
		var rec models.ExportRecord
		var columns string
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Filter, &columns, &rec.Rows, &rec.Client, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &rec.Columns); err != nil {
			logger.Warn("Corrupt export columns", zap.String("export_id", rec.ID), zap.Error(err))
		}
		rec.CreatedAt = time.UnixMilli(created)
		h.Exports = append(h.Exports, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exports: %w", err)
	}

	rows, err = c.db.QueryContext(ctx,
		`SELECT id, terms, found, COALESCE(client, ''), created_at FROM searches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec models.SearchRecord
		var terms string
		var created int64
		if err := rows.Scan(&rec.ID, &terms, &rec.Found, &rec.Client, &created); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		if err := json.Unmarshal([]byte(terms), &rec.Terms); err != nil {
			logger.Warn("Corrupt search terms", zap.String("search_id", rec.ID), zap.Error(err))
		}
		rec.CreatedAt = time.UnixMilli(created)
		h.Searches = append(h.Searches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate searches: %w", err)
	}

	return h, nil
}
