package utils

import (
	"fmt"
	"strings"
	"time"
)

// GenerateConnectionString собирает DSN для pgxpool.
// Пароль может быть пустым: тогда используется trust/peer-аутентификация.
func GenerateConnectionString(
	host, user, password, dbName, sslMode string,
	port, poolSize int,
	timeout time.Duration,
) (string, error) {
	switch {
	case host == "":
		return "", ErrStorageEmptyHostName
	case port <= 0 || port > 65535:
		return "", ErrStorageInvalidPortNumber
	case user == "":
		return "", ErrStorageEmptyUsername
	case dbName == "":
		return "", ErrStorageInvalidDatabaseName
	case sslMode == "":
		return "", ErrStorageInvalidSslMode
	case timeout < 0:
		return "", ErrStorageInvalidTimeout
	case poolSize < 0:
		return "", ErrStorageInvalidPoolSize
	}

	parts := []string{
		"host=" + host,
		fmt.Sprintf("port=%d", port),
		"user=" + user,
		"dbname=" + dbName,
		"sslmode=" + sslMode,
	}
	if password != "" {
		parts = append(parts, "password="+password)
	}
	if timeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(timeout.Seconds())))
	}
	if poolSize > 0 {
		parts = append(parts, fmt.Sprintf("pool_max_conns=%d", poolSize))
	}

	return strings.Join(parts, " "), nil
}
