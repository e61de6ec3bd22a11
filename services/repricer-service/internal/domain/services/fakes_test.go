package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/logger"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/stretchr/testify/require"
)

func newTestRuntime() *Runtime {
	return NewRuntime(logger.NewNopLogger(), 2)
}

func reportArchive(t *testing.T, csv string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("report.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type statusReply struct {
	job *models.ReportJob
	err error
}

func done(url string) statusReply {
	return statusReply{job: &models.ReportJob{ID: "r1", Status: models.ReportDone, FileURL: url}}
}

func generating() statusReply {
	return statusReply{job: &models.ReportJob{ID: "r1", Status: models.ReportGenerating}}
}

// fakeMarket отвечает статусами по очереди, последний повторяется
type fakeMarket struct {
	mu sync.Mutex

	generateErr error
	statuses    []statusReply
	archive     []byte
	downloadErr error
	updateErrs  map[string]error

	statusCalls int
	updates     []models.PriceUpdateRequest
}

func (f *fakeMarket) GenerateReport(ctx context.Context, apiKey, businessID string, from, to time.Time) (*models.ReportJob, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &models.ReportJob{ID: "r1", Status: models.ReportGenerating}, nil
}

func (f *fakeMarket) ReportStatus(ctx context.Context, apiKey, reportID string) (*models.ReportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return nil, errors.New("no statuses configured")
	}
	reply := f.statuses[min(f.statusCalls, len(f.statuses)-1)]
	f.statusCalls++
	return reply.job, reply.err
}

func (f *fakeMarket) DownloadReport(ctx context.Context, apiKey, fileURL string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.archive, nil
}

func (f *fakeMarket) UpdatePrices(ctx context.Context, apiKey, businessID string, req models.PriceUpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	return f.updateErrs[req.Offers[0].OfferID]
}

// fixedSelector выбирает верхнюю границу полосы (или price) и базу скидки price*13/10
type fixedSelector struct {
	price int64 // если не 0, возвращается как есть
}

func (s fixedSelector) SelectPrice(lo, hi int64) int64 {
	if s.price != 0 {
		return s.price
	}
	return hi
}

func (fixedSelector) SelectDiscountBase(price int64) int64 {
	return price * 13 / 10
}

type fakeListings struct {
	mu      sync.Mutex
	sheets  map[string]*models.ListingSheet
	loadErr map[string]error
	saved   map[string]*models.ListingSheet
	loads   int
}

func newFakeListings() *fakeListings {
	return &fakeListings{
		sheets:  make(map[string]*models.ListingSheet),
		loadErr: make(map[string]error),
		saved:   make(map[string]*models.ListingSheet),
	}
}

func (f *fakeListings) Load(ctx context.Context, rng models.Range) (*models.ListingSheet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if err := f.loadErr[rng.Name]; err != nil {
		return nil, err
	}
	return f.sheets[rng.Name], nil
}

func (f *fakeListings) Save(ctx context.Context, rng models.Range, sheet *models.ListingSheet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[rng.Name] = sheet
	return nil
}

type fakeHistory struct {
	mu     sync.Mutex
	cycles []models.CycleRun
	runs   []models.RangeRun
}

func (f *fakeHistory) SaveCycle(ctx context.Context, cycle *models.CycleRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, *cycle)
	return nil
}

func (f *fakeHistory) SaveRangeRun(ctx context.Context, run *models.RangeRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	locked   bool
	lockErr  error
	unlocked int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, interfaces.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeCache) Lock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return false, f.lockErr
	}
	if f.locked {
		return false, nil
	}
	f.locked = true
	return true, nil
}

func (f *fakeCache) Unlock(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked = false
	f.unlocked++
	return nil
}

func (f *fakeCache) Close() error { return nil }

type published struct {
	topic, key string
	payload    []byte
}

type fakeEvents struct {
	mu       sync.Mutex
	messages []published
}

func (f *fakeEvents) Publish(ctx context.Context, topic, key string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic: topic, key: key, payload: message})
	return nil
}

func (f *fakeEvents) Close() error { return nil }

type fakeSnapshots struct {
	mu    sync.Mutex
	names []string
}

func (f *fakeSnapshots) Snapshot(ctx context.Context, name string, header []string, rows []models.ListingRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	return nil
}
