package export

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Formatter maps raw cell values to display strings for a semantic type.
// It is immutable and safe for concurrent use.
type Formatter struct {
	locale   Locale
	currency Locale
	location *time.Location
}

var defaultFormatter = Formatter{locale: localeEnUS, currency: localeEnUS, location: time.UTC}

// NewFormatter resolves the locale, currency locale and time zone in opts.
// Empty values default to en-US and UTC; the currency locale defaults to en-US
// regardless of Locale.
func NewFormatter(opts FormatOptions) (Formatter, error) {
	locale, err := ResolveLocale(opts.Locale)
	if err != nil {
		return Formatter{}, err
	}
	currency, err := ResolveLocale(opts.CurrencyLocale)
	if err != nil {
		return Formatter{}, err
	}

	location := time.UTC
	if tz := strings.TrimSpace(opts.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Formatter{}, NewError(KindValidation, "invalid timezone", err)
		}
		location = loc
	}
	return Formatter{locale: locale, currency: currency, location: location}, nil
}

// FormatValue formats value with the default en-US/UTC formatter.
func FormatValue(value any, typ ColumnType) (string, error) {
	return defaultFormatter.Format(value, typ)
}

// Locale returns the locale used for dates.
func (f Formatter) Locale() Locale {
	return f.locale
}

// Location returns the time zone timestamps are rendered in.
func (f Formatter) Location() *time.Location {
	if f.location == nil {
		return time.UTC
	}
	return f.location
}

// Format renders value for typ. A nil value is always "".
func (f Formatter) Format(value any, typ ColumnType) (string, error) {
	if value == nil {
		return "", nil
	}
	f = f.withDefaults()

	switch normalizeColumnType(typ) {
	case TypeCurrency:
		return f.formatCurrency(value)
	case TypePercentage:
		if number, ok := numericValue(value); ok {
			return fmt.Sprintf("%.2f%%", roundHalfAway(number, 2)), nil
		}
		return stringify(value), nil
	case TypeDate:
		parsed, ok := coerceTime(value, f.Location())
		if !ok {
			return "", NewError(KindFormatting, fmt.Sprintf("invalid date %q", stringify(value)), nil)
		}
		return f.formatDate(parsed), nil
	default:
		return stringify(value), nil
	}
}

// ShortDate renders t in the locale short date form, in the configured zone.
func (f Formatter) ShortDate(t time.Time) string {
	return f.withDefaults().formatDate(parsedTime{value: t})
}

func (f Formatter) formatDate(parsed parsedTime) string {
	value := parsed.value
	if !parsed.dateOnly {
		value = value.In(f.Location())
	}
	return value.Format(f.locale.ShortDate)
}

func (f Formatter) formatCurrency(value any) (string, error) {
	number, ok := coerceFloat(value)
	if !ok || math.IsNaN(number) || math.IsInf(number, 0) {
		return "", NewError(KindFormatting, fmt.Sprintf("invalid number %q", stringify(value)), nil)
	}
	if number > maxCurrencyValue || number < -maxCurrencyValue {
		return "", NewError(KindFormatting, "currency value out of range", nil)
	}

	sign := ""
	if number < 0 {
		sign = "-"
		number = -number
	}
	digits := humanize.FormatFloat(f.currency.Number, number)
	if digits == "0.00" || digits == "0,00" {
		sign = ""
	}
	if f.currency.CurrencySuffix {
		return sign + digits + f.currency.CurrencySymbol, nil
	}
	return sign + f.currency.CurrencySymbol + digits, nil
}

// roundHalfAway rounds ties away from zero, matching the currency path.
func roundHalfAway(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// humanize renders the integer part through int64
const maxCurrencyValue = 9e15

// withDefaults fills in a zero Formatter.
func (f Formatter) withDefaults() Formatter {
	if f.locale.ShortDate == "" {
		f.locale = localeEnUS
	}
	if f.currency.Number == "" {
		f.currency = localeEnUS
	}
	return f
}

func normalizeColumnType(raw ColumnType) ColumnType {
	switch ColumnType(strings.ToLower(strings.TrimSpace(string(raw)))) {
	case TypeCurrency:
		return TypeCurrency
	case TypePercentage:
		return TypePercentage
	case TypeDate:
		return TypeDate
	default:
		return TypeText
	}
}
