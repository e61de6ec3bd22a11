package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConnectionString(t *testing.T) {
	dsn, err := GenerateConnectionString("db", "repricer", "pw", "repricer", "disable", 5432, 8, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=repricer dbname=repricer sslmode=disable password=pw connect_timeout=5 pool_max_conns=8", dsn)

	_, err = GenerateConnectionString("", "u", "", "d", "disable", 5432, 0, 0)
	assert.ErrorIs(t, err, ErrStorageEmptyHostName)

	_, err = GenerateConnectionString("h", "u", "", "d", "disable", 70000, 0, 0)
	assert.ErrorIs(t, err, ErrStorageInvalidPortNumber)
}

func TestAcquisitionErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("range ByMarket: %w", NewAcquisitionError(ErrDownloadFailed, "r-1", cause))

	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrReportTimeout)

	var acq *AcquisitionError
	require.ErrorAs(t, err, &acq)
	assert.Equal(t, "r-1", acq.ReportID)
	assert.Contains(t, err.Error(), "report download failed (report r-1): connection reset")
}

func TestRejectionErrorIsAPIRejection(t *testing.T) {
	err := fmt.Errorf("update: %w", &RejectionError{OfferID: "A", StatusCode: 200, Message: "bad price"})
	assert.ErrorIs(t, err, ErrAPIRejection)
}
