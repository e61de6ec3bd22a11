package interfaces

import (
	"context"
)

// StoragePort - общий жизненный цикл хранилища истории.
// API использует Ping для проверки готовности (/health/ready).
type StoragePort interface {
	Ping(ctx context.Context) error

	// Close закрывает пул соединений
	Close() error
}
