package queue

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// Config holds the task queue settings
type Config struct {
	DBPath          string
	Workers         int
	ReleaseAfter    time.Duration
	CleanupInterval time.Duration
}

// Client wraps backlite with its own SQLite database
type Client struct {
	client *backlite.Client
	db     *sql.DB
	cfg    Config
	log    *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewClient opens the tasks database and installs the backlite schema
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create tasks directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tasks database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Workers + 5)
	db.SetMaxIdleConns(cfg.Workers + 2)
	db.SetConnMaxLifetime(time.Hour)

	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          &zapLogger{log: log.Named("tasks")},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create backlite client: %w", err)
	}

	if err := client.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to install backlite schema: %w", err)
	}

	return &Client{client: client, db: db, cfg: cfg, log: log}, nil
}

// Register registers task queues. Must be called before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.client.Register(q)
	}
}

// Start begins processing tasks. Use Stop for graceful shutdown.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.log.Info("task queue started", zap.Int("workers", c.cfg.Workers))
	c.client.Start(ctx)
}

// Stop waits for running tasks until ctx expires.
// It reports whether all workers finished in time.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return true
	}
	c.started = false

	ok := c.client.Stop(ctx)
	if ok {
		c.log.Info("task queue stopped")
	} else {
		c.log.Warn("task queue stopped with timeout (some tasks may not have completed)")
	}
	return ok
}

// Close releases the tasks database. Call after Stop.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Add starts an operation to enqueue tasks
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.client.Add(tasks...)
}

// zapLogger adapts zap to backlite.Logger
type zapLogger struct {
	log *zap.Logger
}

func (l *zapLogger) Info(message string, params ...any) {
	l.log.Sugar().Infow(message, params...)
}

func (l *zapLogger) Error(message string, params ...any) {
	l.log.Sugar().Errorw(message, params...)
}
