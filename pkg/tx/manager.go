package tx

import (
	"context"
	"fmt"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txKeyType - приватный тип ключа контекста, чтобы избежать коллизий.
type txKeyType struct{}

var txKey = txKeyType{}

// TxManager управляет жизненным циклом транзакций БД.
type TxManager interface {
	// Do выполняет fn внутри транзакции.
	// Ошибка fn откатывает транзакцию, успешное завершение фиксирует ее.
	// Контекст, передаваемый в fn, содержит саму транзакцию.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type pgxTxManager struct {
	pool   *pgxpool.Pool
	logger interfaces.LoggerPort
}

// NewTxManager создает новый менеджер транзакций.
func NewTxManager(pool *pgxpool.Pool, logger interfaces.LoggerPort) TxManager {
	return &pgxTxManager{pool: pool, logger: logger}
}

func (m *pgxTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	// вложенный вызов переиспользует внешнюю транзакцию
	if _, ok := GetTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx.Begin failed: %w", err)
	}

	txCtx := context.WithValue(ctx, txKey, tx)

	// Rollback после Commit возвращает ErrTxClosed, его игнорируем
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(txCtx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			m.logger.Warn("Не удалось откатить транзакцию",
				interfaces.LogField{Key: "rollback_error", Value: rollbackErr.Error()},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx.Commit failed: %w", err)
	}

	return nil
}

// GetTxFromContext извлекает транзакцию из контекста.
func GetTxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}
