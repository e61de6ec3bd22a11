package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/config"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/cache"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/logger"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/storage"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/api"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/api/handlers"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/security"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "путь к файлу конфигурации")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Инициализация API статуса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-api"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	var history handlers.HistoryReader
	var db *storage.HistoryStorage
	if cfg.Postgres.Enabled {
		postgresCon, err := utils.GenerateConnectionString(
			cfg.Postgres.Host,
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.DBName,
			cfg.Postgres.SSLMode,
			cfg.Postgres.Port,
			cfg.Postgres.PoolSize,
			cfg.Postgres.Timeout,
		)
		if err != nil {
			fmt.Printf("Ошибка инициализации строки подключения базы: %v\n", err)
			os.Exit(1)
		}

		db, err = storage.NewPostgresStorage(ctx, postgresCon, log)
		if err != nil {
			log.Fatal("Ошибка инициализации хранилища", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		history = db
		log.Info("Хранилище инициализировано")
	}

	var cacheClient interfaces.CachePort
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.AppName)
		if err != nil {
			log.Fatal("Ошибка инициализации кэша", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		cacheClient = redisCache
		log.Info("Кэш инициализирован")
	}

	var authPort interfaces.AuthPort
	if cfg.Security.JWTPublicKeyFile != "" {
		pem, err := os.ReadFile(cfg.Security.JWTPublicKeyFile)
		if err != nil {
			log.Fatal("Ошибка чтения публичного ключа JWT", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		validator, err := security.NewJWTValidator(pem, cfg.Security.JWTIssuer)
		if err != nil {
			log.Fatal("Ошибка инициализации проверки JWT", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		authPort = validator
	} else {
		log.Warn("security.jwtPublicKeyFile не задан, API доступно без авторизации")
	}

	router := api.SetupRouter(history, cacheClient, log, cfg.Security.CORSAllowOrigins, authPort)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("HTTP сервер остановлен")

		if cacheClient != nil {
			if err := cacheClient.Close(); err != nil {
				log.Error("Ошибка при закрытии Redis", interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}
		if db != nil {
			if err := db.Close(); err != nil {
				log.Error("Ошибка при закрытии БД", interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}

		close(done)
	}()

	<-done
	log.Info("Сервер корректно завершил работу")
}
