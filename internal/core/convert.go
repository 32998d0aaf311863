package core

// convert.go turns spreadsheet cell strings into values pgx can encode for
// the destination column type.
//
// Spreadsheet exports are messy:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// All ToPg* functions return pgtype values with Valid=false for empty/invalid
// input, allowing the database to store NULL.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"01/02/2006 15:04:05",
		"1/2/06 15:04",
	}
)

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// ToTimestamp parses a date-time cell. Date-only values are accepted as midnight.
func ToTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if d := ToPgDate(s); d.Valid {
		return d.Time, true
	}
	return time.Time{}, false
}

// cleanNumber strips currency symbols and thousands separators and turns the
// accounting format "(123.45)" into "-123.45". Returns "" if nothing numeric remains.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return ""
	}
	return s
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	d, ok := ToDecimal(s)
	if !ok {
		return pgtype.Numeric{Valid: false}
	}
	return DecimalToPg(d)
}

// DecimalToPg converts a decimal to pgtype.Numeric without a text round trip.
func DecimalToPg(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// ToDecimal converts a string to a decimal using the same cleanup as ToPgNumeric.
func ToDecimal(s string) (decimal.Decimal, bool) {
	s = cleanNumber(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ToPgInt8 converts a string to pgtype.Int8.
// Spreadsheets often render whole numbers as "5.0"; those are accepted,
// fractional values are not.
func ToPgInt8(s string) pgtype.Int8 {
	d, ok := ToDecimal(s)
	if !ok || !d.IsInteger() {
		return pgtype.Int8{Valid: false}
	}
	if !d.BigInt().IsInt64() {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: d.IntPart(), Valid: true}
}

// ToPgBool converts a string to pgtype.Bool.
// Accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ToPgBool(s string) pgtype.Bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return pgtype.Bool{Valid: false}
	}

	switch s {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{Valid: false}
	}
}

// cellValue converts a raw cell for a destination column of type ft.
// Empty cells become NULL. Text is passed through byte-for-byte, whitespace
// included; a whitespace-only cell in a typed column is NULL.
func cellValue(raw string, ft FieldType) (any, error) {
	if raw == "" {
		return nil, nil
	}
	if ft == FieldText {
		return pgtype.Text{String: raw, Valid: true}, nil
	}
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	switch ft {
	case FieldInteger:
		if v := ToPgInt8(raw); v.Valid {
			return v, nil
		}
	case FieldNumeric:
		if v := ToPgNumeric(raw); v.Valid {
			return v, nil
		}
	case FieldBool:
		if v := ToPgBool(raw); v.Valid {
			return v, nil
		}
	case FieldDate:
		if v := ToPgDate(raw); v.Valid {
			return v, nil
		}
	case FieldTimestamp:
		if t, ok := ToTimestamp(raw); ok {
			return t, nil
		}
	}

	return nil, fmt.Errorf("%w: %q is not a valid %s", ErrInvalidCell, raw, ft)
}

// fieldTypeForPg maps a format_type() string to the conversion used for it.
func fieldTypeForPg(pgType string) FieldType {
	t := strings.ToLower(strings.TrimSpace(pgType))
	switch {
	case t == "smallint", t == "integer", t == "bigint":
		return FieldInteger
	case strings.HasPrefix(t, "numeric"), t == "real", t == "double precision":
		return FieldNumeric
	case t == "boolean":
		return FieldBool
	case t == "date":
		return FieldDate
	case strings.HasPrefix(t, "timestamp"):
		return FieldTimestamp
	default:
		return FieldText
	}
}

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// CleanCell removes common spreadsheet artifacts from a header or key cell:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return s
}
