package services

import (
	"context"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Runtime - общие зависимости компонентов: логгер, пул обработки и часы
type Runtime struct {
	Logger interfaces.LoggerPort
	Pool   *Pool
	Now    func() time.Time
}

// NewRuntime создает окружение с пулом указанного размера
func NewRuntime(logger interfaces.LoggerPort, poolSize int) *Runtime {
	return &Runtime{
		Logger: logger,
		Pool:   NewPool(poolSize),
		Now:    time.Now,
	}
}

// Pool ограничивает число одновременных CPU-задач (разбор, сведение, переоценка)
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Size возвращает число слотов пула
func (p *Pool) Size() int {
	return int(p.size)
}

// Do выполняет fn, когда в пуле освободится слот
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	metrics.PoolBusy.Inc()
	defer func() {
		metrics.PoolBusy.Dec()
		p.sem.Release(1)
	}()

	return fn()
}

// Submit - типизированная обертка над Pool.Do
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
