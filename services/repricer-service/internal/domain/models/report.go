package models

import "time"

// ReportStatus - состояние задания генерации отчета на стороне маркетплейса
type ReportStatus string

const (
	ReportGenerating ReportStatus = "GENERATING"
	ReportDone       ReportStatus = "DONE"
	ReportFailed     ReportStatus = "FAILED"
	ReportNoData     ReportStatus = "NO_DATA"
)

// Terminal сообщает, что ожидание можно прекращать
func (s ReportStatus) Terminal() bool {
	return s == ReportDone || s == ReportFailed || s == ReportNoData
}

// ReportJob - задание генерации отчета о ценах
type ReportJob struct {
	ID                  string
	Status              ReportStatus
	EstimatedGeneration time.Duration
	FileURL             string
	SubStatus           string
}

// ReportRow - строка отчета маркетплейса о конкурентных ценах
type ReportRow struct {
	Key             string
	Offer           string
	MainPrice       *float64
	MerchPrice      *float64
	PriceWithPromos *float64
	GreenThreshold  *float64
	RedThreshold    *float64
	MarketPrice     float64 // PRICE.1
	BestHolder      string
}
