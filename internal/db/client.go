// Package db stores documents, chunks, lab jobs and lessons in SurrealDB over
// an auto-reconnecting WebSocket.
package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/litlab/internal/metrics"
	"github.com/raphaelgruber/litlab/internal/models"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

// Tables in dependency order; WipeData deletes them front to back.
var tables = []string{"active_lab", "micro_lesson", "lab_job", "chunk", "document"}

func init() {
	// WebSocket upgrades fail when ALPN negotiates HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

func (c Config) auth() surrealdb.Auth {
	if c.AuthLevel == "database" {
		return surrealdb.Auth{
			Namespace: c.Namespace,
			Database:  c.Database,
			Username:  c.Username,
			Password:  c.Password,
		}
	}
	return surrealdb.Auth{Username: c.Username, Password: c.Password}
}

// Client is the SurrealDB storage backend.
type Client struct {
	conn    *rews.Connection[*gorillaws.Connection]
	db      *surrealdb.DB
	log     *slog.Logger
	metrics *metrics.Collector
}

// NewClient connects, signs in and selects the namespace and database.
// log and m may be nil.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger, m *metrics.Collector) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "surrealdb")

	conn := dial(cfg.URL, logger.New(log.Handler()))
	log.Info("connecting", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := open(ctx, conn, cfg)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	log.Info("connected", "namespace", cfg.Namespace, "database", cfg.Database, "auth_level", cfg.AuthLevel)
	return &Client{conn: conn, db: db, log: log, metrics: m}, nil
}

// dial builds a reconnecting connection that retries with exponential
// backoff from one to thirty seconds.
func dial(url string, sdkLogger logger.Logger) *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	// gorillaws appends /rpc itself
	baseURL := strings.TrimSuffix(url, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer
	return conn
}

func open(ctx context.Context, conn *rews.Connection[*gorillaws.Connection], cfg Config) (*surrealdb.DB, error) {
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, cfg.auth()); err != nil {
		return nil, fmt.Errorf("signin: %w", err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}
	return db, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.log.Info("closing connection")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Close(ctx)
}

// InitSchema applies the table and index definitions. It is idempotent.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.log.Debug("schema applied")
	return nil
}

// Query runs raw SurrealQL.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]any) (*[]surrealdb.QueryResult[any], error) {
	return surrealdb.Query[any](ctx, c.db, sql, vars)
}

// WipeData deletes every row but keeps the schema. Tests only.
func (c *Client) WipeData(ctx context.Context) error {
	for _, table := range tables {
		if _, err := surrealdb.Query[any](ctx, c.db, "DELETE "+table, nil); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// timed records the duration of one query round trip.
func (c *Client) timed(fn func() error) error {
	return c.metrics.Time(metrics.OpDBQuery, fn, func(err error) bool {
		return errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrAlreadyRunning)
	})
}
