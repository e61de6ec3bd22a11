package utils

import (
	"errors"
	"fmt"
)

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is invalid")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
	ErrNotFound                   = errors.New("not found")
)

// ----------------- report acquisition ------------------
var (
	ErrGenerationRequestFailed = errors.New("report generation request failed")
	ErrReportFailed            = errors.New("report generation failed")
	ErrMalformedResponse       = errors.New("malformed response")
	ErrReportTimeout           = errors.New("report generation timed out")
	ErrDownloadFailed          = errors.New("report download failed")
)

// ----------------- repricing ------------------
var (
	ErrDataValidation = errors.New("data validation failed")
	ErrAPIRejection   = errors.New("price update rejected")
	ErrRangeFailure   = errors.New("range processing failed")
	ErrCycleFailure   = errors.New("cycle failed")
)

// AcquisitionError - ошибка получения отчета. Kind - один из sentinel-ов выше
type AcquisitionError struct {
	Kind      error
	ReportID  string
	SubStatus string
	Err       error
}

func (e *AcquisitionError) Error() string {
	msg := e.Kind.Error()
	if e.ReportID != "" {
		msg += fmt.Sprintf(" (report %s)", e.ReportID)
	}
	if e.SubStatus != "" {
		msg += ": " + e.SubStatus
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AcquisitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewAcquisitionError оборачивает причину в ошибку указанного вида
func NewAcquisitionError(kind error, reportID string, err error) *AcquisitionError {
	return &AcquisitionError{Kind: kind, ReportID: reportID, Err: err}
}

// HTTPStatusError - ответ маркетплейса с неожиданным HTTP-статусом
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// RejectionError - маркетплейс отклонил обновление цены
type RejectionError struct {
	OfferID    string
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("offer %s rejected (status %d): %s", e.OfferID, e.StatusCode, e.Message)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrAPIRejection
}
