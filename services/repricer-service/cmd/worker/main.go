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
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/market"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/messaging"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/sheets"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/storage"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/services"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к файлу конфигурации")
	once := flag.Bool("once", false, "выполнить один цикл и завершиться")
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

	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
		interfaces.LogField{Key: "debug", Value: cfg.Repricer.Debug},
	)

	if err := cfg.Validate(); err != nil {
		log.Fatal("Некорректная конфигурация",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	dateFrom, err := time.Parse("02-01-2006", cfg.Report.DateFrom)
	if err != nil {
		log.Fatal("Некорректная дата начала отчета",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	// Запускаем HTTP сервер для метрик если они включены
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: addr})

			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	source, err := newTableSource(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации источника прайс-листов",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	rt := services.NewRuntime(log, cfg.Repricer.WorkerPoolSize)
	deps := services.OrchestratorDeps{
		Listings: sheets.NewRepository(source, log),
		Market: func() services.MarketAPI {
			return market.NewClient(cfg.Market.BaseURL, cfg.Market.Timeout)
		},
		Policy: services.NewRepricingPolicy(rt, cfg.Repricer.OwnStorefronts, services.RandomSelector{}),
	}
	if cfg.Repricer.Debug {
		deps.Snapshots = sheets.NewWorkbookSnapshotter(cfg.Repricer.SnapshotDir)
	}

	var history *storage.HistoryStorage
	if cfg.Postgres.Enabled {
		connectionStr, err := utils.GenerateConnectionString(
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
			log.Fatal("Ошибка генерации строки подключения к PostgreSQL",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		history, err = storage.NewPostgresStorage(ctx, connectionStr, log)
		if err != nil {
			log.Fatal("Ошибка инициализации хранилища истории",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		defer history.Close()
		deps.History = history
		log.Info("Хранилище истории инициализировано")
	}

	if cfg.Redis.Enabled {
		cacheClient, err := cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.AppName)
		if err != nil {
			log.Fatal("Ошибка инициализации кэша",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		defer cacheClient.Close()
		deps.Cache = cacheClient
		log.Info("Кэш инициализирован")
	}

	if cfg.Kafka.Enabled {
		messagingClient, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.AppName+"-worker", log)
		if err != nil {
			log.Fatal("Ошибка инициализации системы обмена сообщениями",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		defer messagingClient.Close()
		deps.Events = messagingClient
		log.Info("Система обмена сообщениями инициализирована")
	}

	orchestrator := services.NewOrchestrator(rt, toRanges(cfg.Ranges), deps, services.OrchestratorConfig{
		CycleInterval: cfg.Repricer.CycleInterval,
		RangePause:    cfg.Repricer.RangePause,
		Debug:         cfg.Repricer.Debug,
		LockTTL:       cfg.Repricer.LockTTL,
		SummaryTTL:    cfg.Redis.SummaryTTL,
		EventsTopic:   cfg.Kafka.Topic,
		Acquirer: services.AcquirerConfig{
			PollInterval:  cfg.Report.PollInterval,
			MaxWait:       cfg.Report.MaxWait,
			MaxPollErrors: cfg.Report.MaxPollErrors,
			DateFrom:      dateFrom,
		},
		Dispatcher: services.DispatcherConfig{
			Currency:          cfg.Repricer.Currency,
			RequestsPerSecond: cfg.Market.RequestsPerSecond,
		},
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
	}()

	if history != nil && cfg.Postgres.Retention > 0 {
		go pruneHistory(ctx, history, cfg.Postgres.Retention, log)
	}

	if *once {
		if _, err := orchestrator.RunCycle(ctx); err != nil {
			log.Error("Цикл завершился с ошибкой", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		return
	}

	log.Info("Воркер запущен")
	if err := orchestrator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Воркер остановлен с ошибкой", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Воркер корректно завершил работу")
}

func newTableSource(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (sheets.TableSource, error) {
	switch cfg.Listing.Backend {
	case "xlsx":
		return sheets.NewWorkbookSource(cfg.Listing.WorkbookPath), nil
	default:
		return sheets.NewGoogleSource(ctx, cfg.Listing.SpreadsheetID, cfg.Listing.CredentialsFile, cfg.Listing.TokenFile, log)
	}
}

func toRanges(in []config.RangeConfig) []models.Range {
	out := make([]models.Range, len(in))
	for i, r := range in {
		out[i] = models.Range{
			Name:        r.Name,
			SheetRange:  r.SheetRange,
			OutputRange: r.OutputRange,
			APIKey:      r.APIKey,
			BusinessID:  r.BusinessID,
		}
	}
	return out
}

// pruneHistory раз в час удаляет историю старше retention
func pruneHistory(ctx context.Context, history *storage.HistoryStorage, retention time.Duration, log interfaces.LoggerPort) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		removed, err := history.PruneBefore(ctx, time.Now().Add(-retention))
		if err != nil && ctx.Err() == nil {
			log.Warn("Ошибка очистки истории", interfaces.LogField{Key: "error", Value: err.Error()})
		} else if removed > 0 {
			log.Info("Удалена устаревшая история", interfaces.LogField{Key: "cycles", Value: removed})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
