package pipeline

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ratPrecision is the number of fractional digits kept when converting
// BigQuery NUMERIC values (*big.Rat) to decimals.
const ratPrecision = 9

// coerceText returns a trimmed string, or nil when the value is missing or blank.
// Numeric ids (common in XLSX and BigQuery sources) are rendered without exponent.
func coerceText(v any) *string {
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case []byte:
		s = string(val)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case decimal.Decimal:
		s = val.String()
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// coerceMoney parses a monetary value. Textual values use "," or "." as the
// decimal separator; every comma is rewritten to a dot before parsing.
// failed is true when a value was present but could not be parsed.
func coerceMoney(v any) (d decimal.NullDecimal, failed bool) {
	return coerceDecimal(v, true)
}

// coerceQuantity parses a quantity strictly: no separator rewriting.
func coerceQuantity(v any) (d decimal.NullDecimal, failed bool) {
	return coerceDecimal(v, false)
}

func coerceDecimal(v any, commaDecimal bool) (decimal.NullDecimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.NullDecimal{}, false
	case string:
		return parseDecimalText(val, commaDecimal)
	case []byte:
		return parseDecimalText(string(val), commaDecimal)
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return valid(decimal.NewFromInt(int64(val))), false
	case int32:
		return valid(decimal.NewFromInt32(val)), false
	case int64:
		return valid(decimal.NewFromInt(val)), false
	case *big.Rat:
		if val == nil {
			return decimal.NullDecimal{}, false
		}
		return valid(decimal.NewFromBigRat(val, ratPrecision)), false
	case decimal.Decimal:
		return valid(val), false
	case decimal.NullDecimal:
		return val, false
	default:
		return decimal.NullDecimal{}, true
	}
}

func parseDecimalText(s string, commaDecimal bool) (decimal.NullDecimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, false
	}
	if commaDecimal {
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, true
	}
	return valid(d), false
}

func fromFloat(f float64) (decimal.NullDecimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.NullDecimal{}, true
	}
	return valid(decimal.NewFromFloat(f)), false
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// coerceTimestamp parses a purchase timestamp. ok is false when the value is
// missing or cannot be interpreted, in which case the row is dropped.
func coerceTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case civil.DateTime:
		if !val.IsValid() {
			return time.Time{}, false
		}
		return val.In(time.UTC), true
	case civil.Date:
		if !val.IsValid() {
			return time.Time{}, false
		}
		return val.In(time.UTC), true
	case string:
		return parseTimestampText(val)
	case []byte:
		return parseTimestampText(string(val))
	case float64:
		return fromExcelSerial(val)
	case float32:
		return fromExcelSerial(float64(val))
	case int:
		return fromExcelSerial(float64(val))
	case int64:
		return fromExcelSerial(float64(val))
	default:
		return time.Time{}, false
	}
}

func parseTimestampText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	// XLSX raw cell values carry dates as serial numbers.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromExcelSerial(f)
	}
	return time.Time{}, false
}

func fromExcelSerial(f float64) (time.Time, bool) {
	if math.IsNaN(f) || f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
