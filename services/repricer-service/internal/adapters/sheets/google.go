package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSource - TableSource поверх Google Sheets API
type GoogleSource struct {
	srv           *sheets.Service
	spreadsheetID string
}

// NewGoogleSource авторизуется по credentialsFile. Для OAuth-клиента нужен
// сохраненный токен tokenFile; обновленный токен записывается обратно.
// Для ключа сервисного аккаунта tokenFile не используется.
func NewGoogleSource(ctx context.Context, spreadsheetID, credentialsFile, tokenFile string, logger interfaces.LoggerPort) (*GoogleSource, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать %s: %w", credentialsFile, err)
	}

	ts, err := tokenSource(ctx, creds, tokenFile, logger)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента Sheets: %w", err)
	}

	return &GoogleSource{srv: srv, spreadsheetID: spreadsheetID}, nil
}

func tokenSource(ctx context.Context, creds []byte, tokenFile string, logger interfaces.LoggerPort) (oauth2.TokenSource, error) {
	if gjson.GetBytes(creds, "type").String() == "service_account" {
		cfg, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("некорректный ключ сервисного аккаунта: %w", err)
		}
		return cfg.TokenSource(ctx), nil
	}

	cfg, err := google.ConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("некорректный OAuth-клиент: %w", err)
	}

	tok, err := readToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("нет сохраненного токена %s: %w", tokenFile, err)
	}

	return &persistingTokenSource{
		base:   cfg.TokenSource(ctx, tok),
		path:   tokenFile,
		last:   tok.AccessToken,
		logger: logger,
	}, nil
}

func readToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, errors.New("пустой токен")
	}
	return tok, nil
}

// persistingTokenSource сохраняет токен на диск после каждого обновления
type persistingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger interfaces.LoggerPort

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken

	b, err := json.Marshal(tok)
	if err == nil {
		err = os.WriteFile(p.path, b, 0o600)
	}
	if err != nil {
		p.logger.Warn("Не удалось сохранить обновленный токен Google",
			interfaces.LogField{Key: "path", Value: p.path},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	return tok, nil
}

func (g *GoogleSource) Get(ctx context.Context, rangeSpec string) (*models.Table, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(g.spreadsheetID, rangeSpec).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения диапазона %s: %w", rangeSpec, err)
	}

	return tableFromValues(resp.Values), nil
}

// Put записывает заголовок и строки одним запросом, затем очищает строки ниже
// новых данных. Если запись не удалась, прежнее содержимое диапазона остается.
func (g *GoogleSource) Put(ctx context.Context, rangeSpec string, table *models.Table) error {
	values, tail, err := planWrite(rangeSpec, tableValues(table))
	if err != nil {
		return err
	}

	_, err = g.srv.Spreadsheets.Values.Update(g.spreadsheetID, rangeSpec, &sheets.ValueRange{
		Range:  rangeSpec,
		Values: values,
	}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("ошибка записи диапазона %s: %w", rangeSpec, err)
	}

	_, err = g.srv.Spreadsheets.Values.Clear(g.spreadsheetID, tail, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("ошибка очистки хвоста %s: %w", tail, err)
	}

	return nil
}

// planWrite дополняет строки пустыми ячейками до ширины диапазона, чтобы затереть
// старые значения справа, и возвращает диапазон строк ниже новых данных.
// Для диапазона без конечной колонки ширина берется по самой длинной строке.
func planWrite(rangeSpec string, values [][]interface{}) ([][]interface{}, string, error) {
	r, err := parseRange(rangeSpec)
	if err != nil {
		return nil, "", err
	}

	width := 0
	if r.endCol >= r.startCol {
		width = r.endCol - r.startCol + 1
	}
	for _, row := range values {
		width = max(width, len(row))
	}

	padded := make([][]interface{}, len(values))
	for i, row := range values {
		out := make([]interface{}, width)
		copy(out, row)
		for j := len(row); j < width; j++ {
			out[j] = ""
		}
		padded[i] = out
	}

	first, err := excelize.ColumnNumberToName(r.startCol)
	if err != nil {
		return nil, "", err
	}
	last, err := excelize.ColumnNumberToName(r.startCol + max(width, 1) - 1)
	if err != nil {
		return nil, "", err
	}
	sheet := "'" + strings.ReplaceAll(r.sheet, "'", "''") + "'"
	tail := fmt.Sprintf("%s!%s%d:%s", sheet, first, r.startRow+len(values), last)

	return padded, tail, nil
}
