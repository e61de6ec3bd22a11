package interfaces

import (
	"context"
)

// MessagingPort публикует события сервиса во внешнюю шину
type MessagingPort interface {
	// Publish отправляет сообщение в топик. key используется для партиционирования
	Publish(ctx context.Context, topic string, key string, message []byte) error

	Close() error
}
