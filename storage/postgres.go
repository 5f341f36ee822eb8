package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/utils"
	"transfer-dashboard-backend/models"
)

// PostgresConfig holds connection settings of the warehouse
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"sslMode" json:"sslMode"`

	MaxOpenConns int `yaml:"maxOpenConns" json:"maxOpenConns"`
	MaxIdleConns int `yaml:"maxIdleConns" json:"maxIdleConns"`

	// InitSchema creates the feed tables on connect, for local setups
	InitSchema bool `yaml:"initSchema" json:"initSchema"`
}

// Config selects and configures the upstream source
type Config struct {
	Driver      string         `yaml:"driver" json:"driver"` // postgres or memory
	FixturePath string         `yaml:"fixturePath" json:"fixturePath"`
	Postgres    PostgresConfig `yaml:"postgres" json:"postgres"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DefaultConfig returns default storage configuration, reading DB_* variables with fallbacks
func DefaultConfig() Config {
	port := 5432
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		if parsed, err := strconv.Atoi(portStr); err == nil {
			port = parsed
		}
	}

	return Config{
		Driver: DriverPostgres,
		Postgres: PostgresConfig{
			Host:         envOr("DB_HOST", "localhost"),
			Port:         port,
			User:         envOr("DB_USER", "dashboard"),
			Password:     envOr("DB_PASSWORD", "dashboard"),
			Database:     envOr("DB_NAME", "axelar"),
			SSLMode:      envOr("DB_SSLMODE", "disable"),
			MaxOpenConns: 25,
			MaxIdleConns: 10,
		},
	}
}

// DSN renders the connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// SchemaSQL creates the flattened feed tables. The warehouse normally owns them; it is kept here for local setups.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS axelar_transfers (
	event_id          TEXT PRIMARY KEY,
	created_at        TIMESTAMP NOT NULL,
	source_chain      TEXT NOT NULL,
	destination_chain TEXT NOT NULL,
	sender_address    TEXT NOT NULL,
	token_amount      NUMERIC,
	token_unit_price  NUMERIC,
	fee_value         NUMERIC,
	asset             TEXT,
	status            TEXT NOT NULL,
	simplified_status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS axelar_transfers_created_at_idx ON axelar_transfers (created_at);

CREATE TABLE IF NOT EXISTS axelar_gmp (
	event_id            TEXT PRIMARY KEY,
	created_at          TIMESTAMP NOT NULL,
	source_chain        TEXT NOT NULL,
	destination_chain   TEXT NOT NULL,
	sender_address      TEXT NOT NULL,
	native_value        NUMERIC,
	gas_used_amount     NUMERIC,
	gas_token_price_usd NUMERIC,
	express_fee_usd     NUMERIC,
	asset_symbol        TEXT,
	status              TEXT NOT NULL,
	simplified_status   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS axelar_gmp_created_at_idx ON axelar_gmp (created_at);
`

// Numeric columns are read as text so a bad value degrades in normalization instead of failing the scan.
const selectSimpleTransfers = `
	SELECT created_at, source_chain, destination_chain, sender_address,
		token_amount::text, token_unit_price::text, fee_value::text,
		event_id, COALESCE(asset, ''), status, simplified_status
	FROM axelar_transfers
	WHERE (LOWER(source_chain) = $1 OR LOWER(destination_chain) = $1)
		AND status = 'executed' AND simplified_status = 'received'
		AND created_at >= $2 AND created_at < $3
	ORDER BY created_at, event_id`

const selectMessageEvents = `
	SELECT created_at, source_chain, destination_chain, sender_address,
		native_value::text, gas_used_amount::text, gas_token_price_usd::text, express_fee_usd::text,
		event_id, COALESCE(asset_symbol, ''), status, simplified_status
	FROM axelar_gmp
	WHERE (LOWER(source_chain) = $1 OR LOWER(destination_chain) = $1)
		AND status = 'executed' AND simplified_status = 'received'
		AND created_at >= $2 AND created_at < $3
	ORDER BY created_at, event_id`

const insertSimpleTransfer = `
	INSERT INTO axelar_transfers (
		event_id, created_at, source_chain, destination_chain, sender_address,
		token_amount, token_unit_price, fee_value, asset, status, simplified_status
	) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11)
	ON CONFLICT (event_id) DO NOTHING`

const insertMessageEvent = `
	INSERT INTO axelar_gmp (
		event_id, created_at, source_chain, destination_chain, sender_address,
		native_value, gas_used_amount, gas_token_price_usd, express_fee_usd, asset_symbol, status, simplified_status
	) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12)
	ON CONFLICT (event_id) DO NOTHING`

// PostgresSource reads both feeds from PostgreSQL. It holds no per-query state.
type PostgresSource struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenPostgres connects and verifies the connection
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresSource, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	src := NewPostgresSource(db)
	src.log.Info("connected to PostgreSQL",
		zap.String("host", cfg.Host), zap.Int("port", cfg.Port), zap.String("database", cfg.Database))
	if cfg.InitSchema {
		if err := src.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		src.log.Info("feed schema initialized")
	}
	return src, nil
}

// NewPostgresSource wraps an existing handle
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db, log: utils.Component(utils.ComponentStorage)}
}

// InitSchema applies SchemaSQL
func (s *PostgresSource) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func text(ns sql.NullString) models.RawNumber {
	if !ns.Valid {
		return ""
	}
	return models.RawNumber(ns.String)
}

// SimpleTransfers implements Source
func (s *PostgresSource) SimpleTransfers(ctx context.Context, q Query) ([]models.RawSimpleTransferEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectSimpleTransfers, models.NormalizeChain(q.Chain), q.Start, q.End)
	if err != nil {
		return nil, utils.NewDataUnavailable(err, utils.ComponentStorage).WithContext("feed", "axelar_transfers")
	}
	defer rows.Close()

	events := make([]models.RawSimpleTransferEvent, 0)
	for rows.Next() {
		var (
			ev                 models.RawSimpleTransferEvent
			amount, price, fee sql.NullString
		)
		if err := rows.Scan(&ev.Timestamp, &ev.SourceChain, &ev.DestinationChain, &ev.SenderAddress,
			&amount, &price, &fee, &ev.EventID, &ev.Asset, &ev.Status, &ev.SimplifiedStatus); err != nil {
			return nil, utils.NewDataUnavailable(err, utils.ComponentStorage).WithContext("feed", "axelar_transfers")
		}
		ev.TokenAmount, ev.TokenUnitPrice, ev.FeeValue = text(amount), text(price), text(fee)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewDataUnavailable(err, utils.ComponentStorage).WithContext("feed", "axelar_transfers")
	}
	return events, nil
}

// MessageEvents implements Source
func (s *PostgresSource) MessageEvents(ctx context.Context, q Query) ([]models.RawMessageEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectMessageEvents, models.NormalizeChain(q.Chain), q.Start, q.End)
	if err != nil {
		return nil, utils.NewDataUnavailable(err, utils.ComponentStorage).WithContext("feed", "axelar_gmp")
	}
	defer rows.Close()

	events := make([]models.RawMessageEvent, 0)
	for rows.Next() {
		var (
			ev                            models.RawMessageEvent
			native, gasUsed, gasPrice, ex sql.NullString
		)
		if err := rows.Scan(&ev.Timestamp, &ev.SourceChain, &ev.DestinationChain, &ev.SenderAddress,
			&native, &gasUsed, &gasPrice, &ex, &ev.EventID, &ev.AssetSymbol, &ev.Status, &ev.SimplifiedStatus); err != nil {
			return nil, utils.NewDataUnavailable(err, utils.ComponentStorage).WithContext("feed", "axelar_gmp")
		}
		ev.NativeValue, ev.GasUsedAmount, ev.GasTokenPriceUSD, ev.ExpressFeeUSD = text(native), text(gasUsed), text(gasPrice), text(ex)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, utils.NewDataUnavailable(err, utils.ComponentStorage).WithContext("feed", "axelar_gmp")
	}
	return events, nil
}

// numeric passes a parseable value through as text and anything else as NULL
func numeric(n models.RawNumber) interface{} {
	if _, ok := n.Float(); !ok {
		return nil
	}
	return strings.Trim(strings.TrimSpace(string(n)), `"`)
}

// AppendSimple implements Sink. Events already stored are skipped.
func (s *PostgresSource) AppendSimple(ctx context.Context, events []models.RawSimpleTransferEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSimpleTransfer)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, ev := range events {
		res, err := stmt.ExecContext(ctx, ev.EventID, ev.Timestamp, ev.SourceChain, ev.DestinationChain, ev.SenderAddress,
			numeric(ev.TokenAmount), numeric(ev.TokenUnitPrice), numeric(ev.FeeValue), ev.Asset, ev.Status, ev.SimplifiedStatus)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transfer %s: %w", ev.EventID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

// AppendMessages implements Sink. Events already stored are skipped.
func (s *PostgresSource) AppendMessages(ctx context.Context, events []models.RawMessageEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertMessageEvent)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, ev := range events {
		res, err := stmt.ExecContext(ctx, ev.EventID, ev.Timestamp, ev.SourceChain, ev.DestinationChain, ev.SenderAddress,
			numeric(ev.NativeValue), numeric(ev.GasUsedAmount), numeric(ev.GasTokenPriceUSD), numeric(ev.ExpressFeeUSD),
			ev.AssetSymbol, ev.Status, ev.SimplifiedStatus)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message %s: %w", ev.EventID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, nil
}

// Ping checks connectivity
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresSource) Close() error {
	return s.db.Close()
}
