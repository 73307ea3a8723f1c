package export

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	// DefaultFilenameTemplate names artifacts when Config.FilenameTemplate is empty.
	DefaultFilenameTemplate = "{{.Title}}_{{.Date}}"
	// MaxSheetNameLength is the longest sheet name the workbook format accepts.
	MaxSheetNameLength = excelize.MaxSheetNameLength
)

type filenameData struct {
	Title  string
	Date   string
	Format string
}

// DocumentFilename derives "<Title>_<short date>.pdf". Spaces in the title
// become underscores and the date separators become hyphens.
func DocumentFilename(title string, now time.Time, formatter Formatter) (string, error) {
	return documentFilename(DefaultFilenameTemplate, title, now, formatter)
}

// WorkbookFilename derives "<Title>_<YYYY-MM-DD>.xlsx" from the UTC calendar date.
func WorkbookFilename(title string, now time.Time) (string, error) {
	return workbookFilename(DefaultFilenameTemplate, title, now)
}

// SheetName truncates title to MaxSheetNameLength characters. Truncation is
// silent; names the format rejects for other reasons are left to the renderer.
func SheetName(title string) string {
	if utf8.RuneCountInString(title) <= MaxSheetNameLength {
		return title
	}
	runes := []rune(title)
	return string(runes[:MaxSheetNameLength])
}

func documentFilename(pattern, title string, now time.Time, formatter Formatter) (string, error) {
	return renderFilename(pattern, filenameData{
		Title:  filenameTitle(title),
		Date:   hyphenateDate(formatter.ShortDate(now)),
		Format: string(FormatPDF),
	})
}

func workbookFilename(pattern, title string, now time.Time) (string, error) {
	return renderFilename(pattern, filenameData{
		Title:  filenameTitle(title),
		Date:   now.UTC().Format("2006-01-02"),
		Format: string(FormatXLSX),
	})
}

func renderFilename(pattern string, data filenameData) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultFilenameTemplate
	}

	tmpl, err := template.New("filename").Parse(pattern)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	result := strings.TrimSpace(buf.String())
	if result == "" || result == "_" {
		return "", fmt.Errorf("empty filename")
	}

	ext := data.Format
	if !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}

func filenameTitle(title string) string {
	return strings.ReplaceAll(title, " ", "_")
}

var dateSeparators = strings.NewReplacer("/", "-", ".", "-")

func hyphenateDate(date string) string {
	return dateSeparators.Replace(date)
}
