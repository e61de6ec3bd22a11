package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumber приводит значение ячейки к числу.
// Пустые и нечисловые значения дают ok=false.
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return ParseNumber(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		s := strings.TrimSpace(strings.NewReplacer(" ", "", "\u00a0", "").Replace(n))
		if s == "" {
			return 0, false
		}
		s = strings.Replace(s, ",", ".", 1)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NumberPtr - ParseNumber, возвращающий nil для незаданного значения
func NumberPtr(v any) *float64 {
	f, ok := ParseNumber(v)
	if !ok {
		return nil
	}
	return &f
}

// CanonicalKey приводит артикул к строке, по которой сопоставляются таблицы.
// Целые числа с плавающей точкой теряют дробную часть: 12345.0 -> "12345".
func CanonicalKey(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(k)
	case float64:
		if k == math.Trunc(k) && math.Abs(k) < 1e15 {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'f', -1, 64)
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(k))
	}
}
