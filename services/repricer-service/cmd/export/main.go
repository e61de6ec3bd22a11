// Команда export переводит выгрузку отчета маркетплейса (CSV) в xlsx,
// оставляя только колонки, нужные для ручного анализа цен.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/logger"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/sheets"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/services"
)

func main() {
	in := flag.String("in", "", "путь к CSV отчету")
	out := flag.String("out", "", "путь к итоговому xlsx (по умолчанию рядом с отчетом)")
	sheet := flag.String("sheet", "Sheet1", "имя листа")
	logLevel := flag.String("log-level", "info", "уровень логирования")
	flag.Parse()

	log, err := logger.NewZapLogger(*logLevel, false)
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *in == "" {
		log.Fatal("Не указан путь к отчету, используйте -in")
	}
	if *out == "" {
		*out = strings.TrimSuffix(*in, filepath.Ext(*in)) + ".xlsx"
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatal("Не удалось открыть отчет", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer f.Close()

	table, err := services.ReadDelimited(f)
	if err != nil {
		log.Fatal("Не удалось разобрать отчет",
			interfaces.LogField{Key: "path", Value: *in},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	filtered := sheets.FilterReportTable(table)
	if err := sheets.ExportWorkbook(filtered, *out, *sheet); err != nil {
		log.Fatal("Не удалось сохранить xlsx",
			interfaces.LogField{Key: "path", Value: *out},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	log.Info("Отчет экспортирован",
		interfaces.LogField{Key: "path", Value: *out},
		interfaces.LogField{Key: "rows", Value: len(filtered.Rows)},
	)
}
