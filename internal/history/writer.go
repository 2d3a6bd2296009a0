package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"hl-delta-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// FundingObservation is one predicted funding reading for a coin.
type FundingObservation struct {
	Time      time.Time
	Coin      string
	Hourly    float64
	YearlyPct float64
	Source    string
}

// PositionSnapshot captures one instrument's legs at tick time.
type PositionSnapshot struct {
	Time         time.Time
	Coin         string
	Neutral      bool
	SpotSize     float64
	PerpSize     float64
	DiffPct      float64
	SpotUSDC     float64
	AccountValue float64
	PendingCount int
}

// Writer records funding observations and position snapshots to
// TimescaleDB off the trading path. Enqueue never blocks; a full queue
// drops the record and warns once.
type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	positions chan PositionSnapshot
	fundings  chan FundingObservation
	started   atomic.Bool
	dropPos   atomic.Uint64
	dropFund  atomic.Uint64
}

func New(cfg config.HistoryConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("history dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		positions: make(chan PositionSnapshot, queueSize),
		fundings:  make(chan FundingObservation, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueuePosition(snapshot PositionSnapshot) {
	if w == nil {
		return
	}
	select {
	case w.positions <- snapshot:
		return
	default:
		if w.dropPos.Add(1) == 1 && w.log != nil {
			w.log.Warn("history position queue full")
		}
	}
}

func (w *Writer) EnqueueFunding(obs FundingObservation) {
	if w == nil {
		return
	}
	select {
	case w.fundings <- obs:
		return
	default:
		if w.dropFund.Add(1) == 1 && w.log != nil {
			w.log.Warn("history funding queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-w.positions:
			w.writePosition(ctx, snap)
		case obs := <-w.fundings:
			w.writeFunding(ctx, obs)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("history db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		coin TEXT NOT NULL,
		hourly_rate DOUBLE PRECISION NOT NULL,
		yearly_rate_pct DOUBLE PRECISION NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (ts, coin)
	)`, w.table("funding_rates"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		coin TEXT NOT NULL,
		neutral BOOLEAN NOT NULL,
		spot_size DOUBLE PRECISION NOT NULL,
		perp_size DOUBLE PRECISION NOT NULL,
		diff_pct DOUBLE PRECISION NOT NULL,
		spot_usdc DOUBLE PRECISION NOT NULL,
		account_value DOUBLE PRECISION NOT NULL,
		pending_count INTEGER NOT NULL
	)`, w.table("position_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("funding_rates"))); err != nil && w.log != nil {
		w.log.Warn("funding_rates hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("position_snapshots"))); err != nil && w.log != nil {
		w.log.Warn("position_snapshots hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writePosition(ctx context.Context, snap PositionSnapshot) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, coin, neutral, spot_size, perp_size, diff_pct, spot_usdc, account_value, pending_count
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, w.table("position_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		snap.Time,
		snap.Coin,
		snap.Neutral,
		snap.SpotSize,
		snap.PerpSize,
		snap.DiffPct,
		snap.SpotUSDC,
		snap.AccountValue,
		snap.PendingCount,
	); err != nil && w.log != nil {
		w.log.Warn("history position insert failed", zap.Error(err))
	}
}

func (w *Writer) writeFunding(ctx context.Context, obs FundingObservation) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, coin, hourly_rate, yearly_rate_pct, source
	) VALUES ($1,$2,$3,$4,$5)
	ON CONFLICT (ts, coin) DO UPDATE SET
		hourly_rate = EXCLUDED.hourly_rate,
		yearly_rate_pct = EXCLUDED.yearly_rate_pct,
		source = EXCLUDED.source`, w.table("funding_rates"))
	if _, err := w.db.ExecContext(ctx, query,
		obs.Time,
		obs.Coin,
		obs.Hourly,
		obs.YearlyPct,
		obs.Source,
	); err != nil && w.log != nil {
		w.log.Warn("history funding upsert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
