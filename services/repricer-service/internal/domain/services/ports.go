package services

import (
	"context"
	"time"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
)

// MarketAPI - партнерское API маркетплейса
type MarketAPI interface {
	GenerateReport(ctx context.Context, apiKey, businessID string, from, to time.Time) (*models.ReportJob, error)
	ReportStatus(ctx context.Context, apiKey, reportID string) (*models.ReportJob, error)
	DownloadReport(ctx context.Context, apiKey, fileURL string) ([]byte, error)
	UpdatePrices(ctx context.Context, apiKey, businessID string, req models.PriceUpdateRequest) error
}

// MarketFactory создает клиента API на один проход по диапазону
type MarketFactory func() MarketAPI

// ListingRepository читает и записывает прайс-лист диапазона
type ListingRepository interface {
	Load(ctx context.Context, rng models.Range) (*models.ListingSheet, error)
	Save(ctx context.Context, rng models.Range, sheet *models.ListingSheet) error
}

// HistoryRecorder сохраняет историю циклов и прогонов
type HistoryRecorder interface {
	SaveCycle(ctx context.Context, cycle *models.CycleRun) error
	SaveRangeRun(ctx context.Context, run *models.RangeRun) error
}

// Snapshotter сохраняет промежуточные таблицы в debug-режиме
type Snapshotter interface {
	Snapshot(ctx context.Context, name string, header []string, rows []models.ListingRow) error
}
