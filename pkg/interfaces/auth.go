package interfaces

import (
	"context"
)

// Claims - минимальный набор данных, извлекаемых из токена доступа
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
}

// AuthPort определяет интерфейс для работы с аутентификацией
type AuthPort interface {
	// ValidateToken проверяет токен и возвращает claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// HasRole проверяет наличие роли у пользователя
	HasRole(claims *Claims, role string) bool

	// HasAnyRole проверяет наличие хотя бы одной роли из списка
	HasAnyRole(claims *Claims, roles ...string) bool
}
