package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const dateLayout = "02-01-2006"

// Client - HTTP-клиент партнерского API маркетплейса
type Client struct {
	client *resty.Client
}

// NewClient создает клиента. Один клиент обслуживает один проход по диапазону
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &Client{client: client}
}

type generateRequest struct {
	BusinessID       int64   `json:"businessId"`
	CategoryIDs      []int64 `json:"categoryIds"`
	CreationDateFrom string  `json:"creationDateFrom"`
	CreationDateTo   string  `json:"creationDateTo"`
}

type generateResponse struct {
	Status string `json:"status"`
	Result struct {
		ReportID                string `json:"reportId"`
		EstimatedGenerationTime int64  `json:"estimatedGenerationTime"`
	} `json:"result"`
}

type infoResponse struct {
	Status string `json:"status"`
	Result struct {
		Status    string `json:"status"`
		SubStatus string `json:"subStatus"`
		File      string `json:"file"`
	} `json:"result"`
}

// GenerateReport запускает генерацию отчета о ценах в формате CSV
func (c *Client) GenerateReport(ctx context.Context, apiKey, businessID string, from, to time.Time) (*models.ReportJob, error) {
	id, err := strconv.ParseInt(businessID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("некорректный businessId %q: %w", businessID, err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Api-Key", apiKey).
		SetQueryParam("format", "CSV").
		SetBody(generateRequest{
			BusinessID:       id,
			CategoryIDs:      []int64{},
			CreationDateFrom: from.Format(dateLayout),
			CreationDateTo:   to.Format(dateLayout),
		}).
		Post("/reports/prices/generate")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &utils.HTTPStatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrMalformedResponse, err)
	}
	if out.Result.ReportID == "" {
		return nil, fmt.Errorf("%w: нет reportId в ответе", utils.ErrMalformedResponse)
	}

	return &models.ReportJob{
		ID:                  out.Result.ReportID,
		Status:              models.ReportGenerating,
		EstimatedGeneration: time.Duration(out.Result.EstimatedGenerationTime) * time.Millisecond,
	}, nil
}

// ReportStatus запрашивает текущее состояние задания
func (c *Client) ReportStatus(ctx context.Context, apiKey, reportID string) (*models.ReportJob, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Api-Key", apiKey).
		SetPathParam("reportId", reportID).
		Get("/reports/info/{reportId}")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &utils.HTTPStatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	var out infoResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrMalformedResponse, err)
	}
	if out.Result.Status == "" {
		return nil, fmt.Errorf("%w: нет статуса отчета в ответе", utils.ErrMalformedResponse)
	}

	return &models.ReportJob{
		ID:        reportID,
		Status:    models.ReportStatus(out.Result.Status),
		SubStatus: out.Result.SubStatus,
		FileURL:   out.Result.File,
	}, nil
}

// DownloadReport скачивает готовый архив отчета
func (c *Client) DownloadReport(ctx context.Context, apiKey, fileURL string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "OAuth "+apiKey).
		SetHeader("Accept", "*/*").
		Get(fileURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &utils.HTTPStatusError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	return resp.Body(), nil
}

// UpdatePrices отправляет новые цены. Ответ 200 с success == 0 считается отказом
func (c *Client) UpdatePrices(ctx context.Context, apiKey, businessID string, req models.PriceUpdateRequest) error {
	offerID := ""
	if len(req.Offers) > 0 {
		offerID = req.Offers[0].OfferID
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Api-Key", apiKey).
		SetHeader("Content-Type", "application/json").
		SetPathParam("businessId", businessID).
		SetBody(req).
		Post("/businesses/{businessId}/offer-prices/updates")
	if err != nil {
		return err
	}

	if resp.StatusCode() != http.StatusOK {
		return &utils.RejectionError{
			OfferID:    offerID,
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.Body(), resp.String()),
		}
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: ответ на обновление цены %s не JSON", utils.ErrMalformedResponse, offerID)
	}

	success := gjson.GetBytes(body, "success")
	status := gjson.GetBytes(body, "status").String()
	if (success.Exists() && success.Int() == 0) || status == "ERROR" {
		return &utils.RejectionError{
			OfferID:    offerID,
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(body, "Неизвестная ошибка"),
		}
	}

	return nil
}

// errorMessage достает текст ошибки из тела ответа API
func errorMessage(body []byte, fallback string) string {
	for _, path := range []string{"error.message", "errors.0.message"} {
		if msg := gjson.GetBytes(body, path); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
	}
	return fallback
}
