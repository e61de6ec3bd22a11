package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/pkg/tx"
	"github.com/athebyme/market-repricer/pkg/utils"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	serviceutils "github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS repricer_cycles (
	id          UUID PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS repricer_range_runs (
	id             UUID PRIMARY KEY,
	cycle_id       UUID NOT NULL REFERENCES repricer_cycles(id) ON DELETE CASCADE,
	range_name     TEXT NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ,
	status         TEXT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	rows_total     INT NOT NULL DEFAULT 0,
	report_rows    INT NOT NULL DEFAULT 0,
	rows_changed   INT NOT NULL DEFAULT 0,
	below_floor    INT NOT NULL DEFAULT 0,
	accepted       INT NOT NULL DEFAULT 0,
	rejected       INT NOT NULL DEFAULT 0,
	network_failed INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_repricer_range_runs_cycle ON repricer_range_runs(cycle_id);
CREATE INDEX IF NOT EXISTS idx_repricer_range_runs_name ON repricer_range_runs(range_name, started_at DESC);

CREATE TABLE IF NOT EXISTS repricer_price_updates (
	id            BIGSERIAL PRIMARY KEY,
	range_run_id  UUID NOT NULL REFERENCES repricer_range_runs(id) ON DELETE CASCADE,
	offer_id      TEXT NOT NULL,
	old_price     DOUBLE PRECISION,
	new_price     BIGINT NOT NULL,
	discount_base BIGINT NOT NULL,
	outcome       TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT ''
);
`

// HistoryStorage хранит историю циклов переоценки в PostgreSQL
type HistoryStorage struct {
	pool *pgxpool.Pool
	txm  tx.TxManager
}

// NewPostgresStorage подключается к БД и создает схему, если ее нет
func NewPostgresStorage(ctx context.Context, connectionString string, logger interfaces.LoggerPort) (*HistoryStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &HistoryStorage{pool: pool, txm: tx.NewTxManager(pool, logger)}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// EnsureSchema создает таблицы истории
func (s *HistoryStorage) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *HistoryStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *HistoryStorage) Close() error {
	s.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает транзакцию из контекста или пул
func (s *HistoryStorage) getExecutor(ctx context.Context) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return s.pool
}

// SaveCycle создает или обновляет запись цикла
func (s *HistoryStorage) SaveCycle(ctx context.Context, cycle *models.CycleRun) error {
	_, err := s.getExecutor(ctx).Exec(ctx, `
		INSERT INTO repricer_cycles (id, started_at, finished_at, status, error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			error = EXCLUDED.error`,
		cycle.ID, cycle.StartedAt, cycle.FinishedAt, string(cycle.Status), cycle.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}
	return nil
}

// SaveRangeRun сохраняет прогон диапазона вместе с исходами обновлений в одной транзакции
func (s *HistoryStorage) SaveRangeRun(ctx context.Context, run *models.RangeRun) error {
	return s.txm.Do(ctx, func(ctx context.Context) error {
		exec := s.getExecutor(ctx)

		_, err := exec.Exec(ctx, `
			INSERT INTO repricer_range_runs (
				id, cycle_id, range_name, started_at, finished_at, status, error,
				rows_total, report_rows, rows_changed, below_floor, accepted, rejected, network_failed
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				finished_at = EXCLUDED.finished_at,
				status = EXCLUDED.status,
				error = EXCLUDED.error,
				rows_total = EXCLUDED.rows_total,
				report_rows = EXCLUDED.report_rows,
				rows_changed = EXCLUDED.rows_changed,
				below_floor = EXCLUDED.below_floor,
				accepted = EXCLUDED.accepted,
				rejected = EXCLUDED.rejected,
				network_failed = EXCLUDED.network_failed`,
			run.ID, run.CycleID, run.RangeName, run.StartedAt, run.FinishedAt, string(run.Status), run.Error,
			run.RowsTotal, run.ReportRows, run.RowsChanged, run.BelowFloor, run.Accepted, run.Rejected, run.NetworkFails,
		)
		if err != nil {
			return fmt.Errorf("failed to save range run: %w", err)
		}

		if _, err := exec.Exec(ctx, `DELETE FROM repricer_price_updates WHERE range_run_id = $1`, run.ID); err != nil {
			return fmt.Errorf("failed to reset price updates: %w", err)
		}

		if len(run.Updates) == 0 {
			return nil
		}

		rows := make([][]interface{}, 0, len(run.Updates))
		for _, u := range run.Updates {
			rows = append(rows, []interface{}{
				run.ID, u.OfferID, u.OldPrice, u.NewPrice, u.DiscountBase, string(u.Outcome), u.Message,
			})
		}

		t, ok := tx.GetTxFromContext(ctx)
		if !ok {
			return errors.New("price updates must be copied inside a transaction")
		}
		_, err = t.CopyFrom(ctx,
			pgx.Identifier{"repricer_price_updates"},
			[]string{"range_run_id", "offer_id", "old_price", "new_price", "discount_base", "outcome", "message"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to save price updates: %w", err)
		}
		return nil
	})
}

// ListCycles возвращает страницу истории циклов, новые первыми
func (s *HistoryStorage) ListCycles(ctx context.Context, p *utils.Pagination) ([]models.CycleRun, error) {
	exec := s.getExecutor(ctx)

	var total int64
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM repricer_cycles`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count cycles: %w", err)
	}
	p.SetTotal(total)

	order := p.GetSortOrder("started_at", "started_at", "finished_at", "status")
	rows, err := exec.Query(ctx, `
		SELECT id, started_at, finished_at, status, error
		FROM repricer_cycles
		ORDER BY `+order+`
		LIMIT $1 OFFSET $2`, p.GetLimit(), p.GetOffset())
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]models.CycleRun, 0, p.GetLimit())
	for rows.Next() {
		var c models.CycleRun
		var status string
		if err := rows.Scan(&c.ID, &c.StartedAt, &c.FinishedAt, &status, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.Status = models.RunStatus(status)
		cycles = append(cycles, c)
	}

	return cycles, rows.Err()
}

// GetCycle возвращает цикл с прогонами диапазонов и исходами обновлений
func (s *HistoryStorage) GetCycle(ctx context.Context, id uuid.UUID) (*models.CycleRun, error) {
	exec := s.getExecutor(ctx)

	var c models.CycleRun
	var status string
	err := exec.QueryRow(ctx, `
		SELECT id, started_at, finished_at, status, error
		FROM repricer_cycles WHERE id = $1`, id).
		Scan(&c.ID, &c.StartedAt, &c.FinishedAt, &status, &c.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, serviceutils.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cycle: %w", err)
	}
	c.Status = models.RunStatus(status)

	rows, err := exec.Query(ctx, `
		SELECT r.id, r.cycle_id, r.range_name, r.started_at, r.finished_at, r.status, r.error,
		       r.rows_total, r.report_rows, r.rows_changed, r.below_floor, r.accepted, r.rejected, r.network_failed,
		       COALESCE((
		           SELECT json_agg(json_build_object(
		               'offer_id', u.offer_id, 'old_price', u.old_price, 'new_price', u.new_price,
		               'discount_base', u.discount_base, 'outcome', u.outcome, 'message', u.message
		           ) ORDER BY u.id)
		           FROM repricer_price_updates u WHERE u.range_run_id = r.id
		       ), '[]'::json)
		FROM repricer_range_runs r
		WHERE r.cycle_id = $1
		ORDER BY r.started_at`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get range runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.RangeRun
		var runStatus string
		var updates []byte
		if err := rows.Scan(
			&r.ID, &r.CycleID, &r.RangeName, &r.StartedAt, &r.FinishedAt, &runStatus, &r.Error,
			&r.RowsTotal, &r.ReportRows, &r.RowsChanged, &r.BelowFloor, &r.Accepted, &r.Rejected, &r.NetworkFails,
			&updates,
		); err != nil {
			return nil, fmt.Errorf("failed to scan range run: %w", err)
		}
		r.Status = models.RunStatus(runStatus)
		if err := json.Unmarshal(updates, &r.Updates); err != nil {
			return nil, fmt.Errorf("failed to decode price updates: %w", err)
		}
		c.Ranges = append(c.Ranges, r)
	}

	return &c, rows.Err()
}

// PruneBefore удаляет историю старше указанного момента
func (s *HistoryStorage) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.getExecutor(ctx).Exec(ctx, `DELETE FROM repricer_cycles WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}
