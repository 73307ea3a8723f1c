package export

import (
	"fmt"
	"strings"
	"time"
)

// RGB is an 8-bit color.
type RGB struct {
	R, G, B int
}

// PageSize is a page size in millimetres (portrait).
type PageSize struct {
	Width  float64
	Height float64
}

var pageSizesMM = map[string]PageSize{
	"A3":     {Width: 297, Height: 420},
	"A4":     {Width: 210, Height: 297},
	"A5":     {Width: 148, Height: 210},
	"LETTER": {Width: 215.9, Height: 279.4},
	"LEGAL":  {Width: 215.9, Height: 355.6},
}

// LookupPageSize returns the dimensions of a named page size.
func LookupPageSize(name string) (PageSize, bool) {
	size, ok := pageSizesMM[strings.ToUpper(strings.TrimSpace(name))]
	return size, ok
}

// DocumentLayout holds the visual constants of the printable document.
// All lengths are millimetres, font sizes are points.
type DocumentLayout struct {
	PageSize    string
	Landscape   bool
	FontFamily  string
	MarginLeft  float64
	MarginRight float64
	// MarginTop is where the table resumes on continuation pages.
	MarginTop float64
	// MarginBottom is the space kept free for the footer.
	MarginBottom float64

	TitleY          float64
	TitleFontSize   float64
	SubtitleY       float64
	SubtitleSize    float64
	SubtitlePattern string
	TableStartY     float64

	HeaderFill     RGB
	HeaderText     RGB
	HeaderFontSize float64
	BodyFontSize   float64
	CellPadding    float64
	LineHeight     float64
	GridColor      RGB

	// ColumnWidths overrides the width of columns by key. Columns without an
	// entry share the remaining table width evenly.
	ColumnWidths map[string]float64

	FooterFontSize float64
	// FooterOffset is the distance of the footer baseline from the bottom edge.
	FooterOffset  float64
	FooterPattern string
}

// DefaultDocumentLayout returns the standard report layout.
func DefaultDocumentLayout() DocumentLayout {
	return DocumentLayout{
		PageSize:        "A4",
		FontFamily:      "Helvetica",
		MarginLeft:      14,
		MarginRight:     14,
		MarginTop:       10,
		MarginBottom:    20,
		TitleY:          15,
		TitleFontSize:   16,
		SubtitleY:       22,
		SubtitleSize:    10,
		SubtitlePattern: "Generated on %s",
		TableStartY:     25,
		HeaderFill:      RGB{R: 42, G: 119, B: 195},
		HeaderText:      RGB{R: 255, G: 255, B: 255},
		HeaderFontSize:  10,
		BodyFontSize:    9,
		CellPadding:     3,
		LineHeight:      1.15,
		GridColor:       RGB{R: 200, G: 200, B: 200},
		FooterFontSize:  10,
		FooterOffset:    10,
		FooterPattern:   "Page %d",
	}
}

// Merge returns l with the non-zero fields of override applied.
func (l DocumentLayout) Merge(override DocumentLayout) DocumentLayout {
	merged := l
	if override.PageSize != "" {
		merged.PageSize = override.PageSize
	}
	if override.Landscape {
		merged.Landscape = true
	}
	if override.FontFamily != "" {
		merged.FontFamily = override.FontFamily
	}
	if override.MarginLeft != 0 {
		merged.MarginLeft = override.MarginLeft
	}
	if override.MarginRight != 0 {
		merged.MarginRight = override.MarginRight
	}
	if override.MarginTop != 0 {
		merged.MarginTop = override.MarginTop
	}
	if override.MarginBottom != 0 {
		merged.MarginBottom = override.MarginBottom
	}
	if override.TitleY != 0 {
		merged.TitleY = override.TitleY
	}
	if override.TitleFontSize != 0 {
		merged.TitleFontSize = override.TitleFontSize
	}
	if override.SubtitleY != 0 {
		merged.SubtitleY = override.SubtitleY
	}
	if override.SubtitleSize != 0 {
		merged.SubtitleSize = override.SubtitleSize
	}
	if override.SubtitlePattern != "" {
		merged.SubtitlePattern = override.SubtitlePattern
	}
	if override.TableStartY != 0 {
		merged.TableStartY = override.TableStartY
	}
	if override.HeaderFill != (RGB{}) {
		merged.HeaderFill = override.HeaderFill
	}
	if override.HeaderText != (RGB{}) {
		merged.HeaderText = override.HeaderText
	}
	if override.HeaderFontSize != 0 {
		merged.HeaderFontSize = override.HeaderFontSize
	}
	if override.BodyFontSize != 0 {
		merged.BodyFontSize = override.BodyFontSize
	}
	if override.CellPadding != 0 {
		merged.CellPadding = override.CellPadding
	}
	if override.LineHeight != 0 {
		merged.LineHeight = override.LineHeight
	}
	if override.GridColor != (RGB{}) {
		merged.GridColor = override.GridColor
	}
	if len(override.ColumnWidths) > 0 {
		merged.ColumnWidths = override.ColumnWidths
	}
	if override.FooterFontSize != 0 {
		merged.FooterFontSize = override.FooterFontSize
	}
	if override.FooterOffset != 0 {
		merged.FooterOffset = override.FooterOffset
	}
	if override.FooterPattern != "" {
		merged.FooterPattern = override.FooterPattern
	}
	return merged
}

// Page returns the page dimensions with orientation applied.
func (l DocumentLayout) Page() (PageSize, error) {
	size, ok := LookupPageSize(l.PageSize)
	if !ok {
		return PageSize{}, NewError(KindRender, fmt.Sprintf("unsupported page size: %s", l.PageSize), nil)
	}
	if l.Landscape {
		size.Width, size.Height = size.Height, size.Width
	}
	return size, nil
}

// TableWidth is the printable width between the side margins.
func (l DocumentLayout) TableWidth() (float64, error) {
	page, err := l.Page()
	if err != nil {
		return 0, err
	}
	width := page.Width - l.MarginLeft - l.MarginRight
	if width <= 0 {
		return 0, NewError(KindRender, "margins leave no room for the table", nil)
	}
	return width, nil
}

// Footer renders the footer text for a page number.
func (l DocumentLayout) Footer(page int) string {
	pattern := l.FooterPattern
	if pattern == "" {
		pattern = "Page %d"
	}
	return fmt.Sprintf(pattern, page)
}

// Document is a dataset laid out for a paginated renderer.
type Document struct {
	Title       string
	Subtitle    string
	GeneratedAt time.Time
	Header      []string
	Rows        [][]string
	// Widths holds one resolved width per column, in millimetres.
	Widths []float64
	Layout DocumentLayout
}

// BuildDocument formats ds and lays it out with layout.
func BuildDocument(ds Dataset, formatter Formatter, layout DocumentLayout, now time.Time) (Document, error) {
	grid, err := BuildGrid(ds.Headers, ds.Rows, formatter)
	if err != nil {
		return Document{}, err
	}

	widths, err := ResolveColumnWidths(ds.Headers, layout)
	if err != nil {
		return Document{}, err
	}

	pattern := layout.SubtitlePattern
	if pattern == "" {
		pattern = "Generated on %s"
	}

	return Document{
		Title:       ds.Title,
		Subtitle:    fmt.Sprintf(pattern, formatter.ShortDate(now)),
		GeneratedAt: now,
		Header:      grid.Header,
		Rows:        grid.Rows,
		Widths:      widths,
		Layout:      layout,
	}, nil
}

// ResolveColumnWidths applies layout.ColumnWidths by column key and splits
// the remaining table width evenly across the other columns. When the
// overrides alone exceed the table width every column is scaled down.
func ResolveColumnWidths(headers []Column, layout DocumentLayout) ([]float64, error) {
	widths := make([]float64, len(headers))
	if len(headers) == 0 {
		return widths, nil
	}

	total, err := layout.TableWidth()
	if err != nil {
		return nil, err
	}

	fixed := 0.0
	flexible := 0
	for i, col := range headers {
		width, ok := layout.ColumnWidths[col.Key]
		if ok && width > 0 {
			widths[i] = width
			fixed += width
			continue
		}
		flexible++
	}

	if flexible > 0 {
		share := (total - fixed) / float64(flexible)
		if share > 0 {
			for i := range widths {
				if widths[i] == 0 {
					widths[i] = share
				}
			}
			return widths, nil
		}
		// no room left; give the flexible columns a nominal width before scaling
		for i := range widths {
			if widths[i] == 0 {
				widths[i] = total / float64(len(headers))
				fixed += widths[i]
			}
		}
	}

	if fixed > total {
		scale := total / fixed
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths, nil
}
