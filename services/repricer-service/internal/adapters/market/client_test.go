package market

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reports/prices/generate", r.URL.Path)
		assert.Equal(t, "CSV", r.URL.Query().Get("format"))
		assert.Equal(t, "key", r.Header.Get("Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(76443469), body["businessId"])
		assert.Equal(t, "01-01-2023", body["creationDateFrom"])
		assert.Equal(t, "17-10-2026", body["creationDateTo"])
		assert.Equal(t, []any{}, body["categoryIds"])

		_, _ = io.WriteString(w, `{"status":"OK","result":{"reportId":"r-1","estimatedGenerationTime":15000}}`)
	}))
	defer srv.Close()

	from := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	job, err := NewClient(srv.URL, time.Second).GenerateReport(context.Background(), "key", "76443469", from, to)
	require.NoError(t, err)
	assert.Equal(t, "r-1", job.ID)
	assert.Equal(t, 15*time.Second, job.EstimatedGeneration)
	assert.Equal(t, models.ReportGenerating, job.Status)
}

func TestGenerateReportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Api-Key") == "bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	_, err := c.GenerateReport(context.Background(), "bad", "1", time.Now(), time.Now())
	var statusErr *utils.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)

	_, err = c.GenerateReport(context.Background(), "ok", "1", time.Now(), time.Now())
	assert.ErrorIs(t, err, utils.ErrMalformedResponse)

	_, err = c.GenerateReport(context.Background(), "ok", "not-a-number", time.Now(), time.Now())
	assert.Error(t, err)
}

func TestReportStatusAndDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reports/info/r-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("Api-Key"))
		_, _ = io.WriteString(w, `{"status":"OK","result":{"status":"DONE","file":"http://`+r.Host+`/files/r-1.zip"}}`)
	})
	mux.HandleFunc("/files/r-1.zip", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OAuth key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("PK-data"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)

	job, err := c.ReportStatus(context.Background(), "key", "r-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportDone, job.Status)
	assert.Equal(t, srv.URL+"/files/r-1.zip", job.FileURL)

	data, err := c.DownloadReport(context.Background(), "key", job.FileURL)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK-data"), data)
}

func TestUpdatePricesClassification(t *testing.T) {
	var body string
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/businesses/42/offer-prices/updates", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.PriceUpdateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Offers, 1)
		assert.Equal(t, "SKU-1", req.Offers[0].OfferID)
		assert.Equal(t, "RUR", req.Offers[0].Price.CurrencyID)

		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	req := models.PriceUpdateRequest{Offers: []models.OfferPrice{{
		OfferID: "SKU-1",
		Price:   models.PriceValue{Value: 1000, CurrencyID: "RUR", DiscountBase: 1400},
	}}}

	body = `{"status":"OK"}`
	assert.NoError(t, c.UpdatePrices(context.Background(), "key", "42", req))

	body = `{"success":0,"error":{"message":"price too low"}}`
	err := c.UpdatePrices(context.Background(), "key", "42", req)
	var rej *utils.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "price too low", rej.Message)
	assert.ErrorIs(t, err, utils.ErrAPIRejection)

	body = `<html>`
	assert.ErrorIs(t, c.UpdatePrices(context.Background(), "key", "42", req), utils.ErrMalformedResponse)

	status = http.StatusBadRequest
	body = `{"status":"ERROR","errors":[{"code":"BAD_REQUEST","message":"offer not found"}]}`
	err = c.UpdatePrices(context.Background(), "key", "42", req)
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusBadRequest, rej.StatusCode)
	assert.Equal(t, "offer not found", rej.Message)
}
