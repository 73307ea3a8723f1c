package export

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "en-US"

// Locale holds the display conventions for one language/region pair.
type Locale struct {
	Tag language.Tag
	// ShortDate is a time layout for the short date form.
	ShortDate string
	// Number is a go-humanize FormatFloat pattern with two decimals.
	Number         string
	CurrencySymbol string
	CurrencySuffix bool
}

var (
	localeEnUS = Locale{Tag: language.AmericanEnglish, ShortDate: "1/2/2006", Number: "#,###.##", CurrencySymbol: "$"}
	localeEnGB = Locale{Tag: language.BritishEnglish, ShortDate: "02/01/2006", Number: "#,###.##", CurrencySymbol: "£"}
	localeDeDE = Locale{Tag: language.MustParse("de-DE"), ShortDate: "2.1.2006", Number: "#.###,##", CurrencySymbol: "\u00a0€", CurrencySuffix: true}
	localeFrFR = Locale{Tag: language.MustParse("fr-FR"), ShortDate: "02/01/2006", Number: "#\u202f###,##", CurrencySymbol: "\u00a0€", CurrencySuffix: true}
	localeRuRU = Locale{Tag: language.MustParse("ru-RU"), ShortDate: "02.01.2006", Number: "#\u00a0###,##", CurrencySymbol: "\u00a0₽", CurrencySuffix: true}
)

// first entry is the matcher fallback
var knownLocales = []Locale{localeEnUS, localeEnGB, localeDeDE, localeFrFR, localeRuRU}

var localeMatcher = newLocaleMatcher(knownLocales)

func newLocaleMatcher(locales []Locale) language.Matcher {
	tags := make([]language.Tag, len(locales))
	for i, loc := range locales {
		tags[i] = loc.Tag
	}
	return language.NewMatcher(tags)
}

// ResolveLocale parses a BCP 47 tag and returns the closest known locale.
// An empty tag resolves to DefaultLocale.
func ResolveLocale(raw string) (Locale, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultLocale
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return Locale{}, NewError(KindValidation, fmt.Sprintf("invalid locale %q", raw), err)
	}
	_, idx, confidence := localeMatcher.Match(tag)
	if confidence == language.No {
		idx = 0
	}
	return knownLocales[idx], nil
}
