package exportpdf

import (
	"context"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/goliatone/go-report-export/export"
)

const pointsToMM = 25.4 / 72.0

// Renderer draws documents natively with fpdf using the core fonts.
// Text outside the cp1252 code page is replaced.
type Renderer struct {
	// DisableCompression leaves page streams uncompressed.
	DisableCompression bool
	Creator            string
}

// RenderDocument implements export.DocumentRenderer.
func (r Renderer) RenderDocument(ctx context.Context, doc export.Document, w io.Writer) (export.RenderStats, error) {
	if err := ctx.Err(); err != nil {
		return export.RenderStats{}, err
	}
	if len(doc.Widths) != len(doc.Header) {
		return export.RenderStats{}, export.NewError(export.KindRender, "column widths do not match header", nil)
	}

	layout := doc.Layout
	size, err := layout.Page()
	if err != nil {
		return export.RenderStats{}, err
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: size.Width, Ht: size.Height},
	})
	pdf.SetCompression(!r.DisableCompression)
	pdf.SetCatalogSort(true)
	pdf.SetAutoPageBreak(false, layout.MarginBottom)
	pdf.SetMargins(layout.MarginLeft, layout.MarginTop, layout.MarginRight)
	pdf.SetTitle(doc.Title, true)
	if r.Creator != "" {
		pdf.SetCreator(r.Creator, true)
	}
	if !doc.GeneratedAt.IsZero() {
		pdf.SetCreationDate(doc.GeneratedAt)
		pdf.SetModificationDate(doc.GeneratedAt)
	}

	d := &drawer{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		layout: layout,
		page:   size,
		widths: doc.Widths,
	}
	pdf.SetFooterFunc(d.footer)

	pdf.AddPage()
	d.heading(doc.Title, doc.Subtitle)

	stats := export.RenderStats{}
	if len(doc.Header) > 0 {
		y := layout.TableStartY
		y = d.row(doc.Header, y, true)
		for _, row := range doc.Rows {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			lines := d.wrapRow(row, false)
			height := d.rowHeight(lines, false)
			if y+height > size.Height-layout.MarginBottom {
				pdf.AddPage()
				y = d.row(doc.Header, layout.MarginTop, true)
			}
			d.drawRow(lines, y, height, false)
			y += height
			stats.Rows++
		}
	}

	if pdf.Err() {
		return stats, export.NewError(export.KindRender, "pdf layout failed", pdf.Error())
	}
	stats.Pages = pdf.PageNo()

	cw := &countingWriter{w: w}
	if err := pdf.Output(cw); err != nil {
		return stats, export.NewError(export.KindRender, "pdf output failed", err)
	}
	stats.Bytes = cw.count
	return stats, nil
}

type drawer struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	layout export.DocumentLayout
	page   export.PageSize
	widths []float64
}

func (d *drawer) heading(title, subtitle string) {
	l := d.layout
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetFont(l.FontFamily, "B", l.TitleFontSize)
	d.pdf.Text(l.MarginLeft, l.TitleY, d.tr(title))
	d.pdf.SetFont(l.FontFamily, "", l.SubtitleSize)
	d.pdf.Text(l.MarginLeft, l.SubtitleY, d.tr(subtitle))
}

func (d *drawer) footer() {
	l := d.layout
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.SetFont(l.FontFamily, "", l.FooterFontSize)
	d.pdf.Text(l.MarginLeft, d.page.Height-l.FooterOffset, d.tr(l.Footer(d.pdf.PageNo())))
}

// row wraps, draws and returns the y below the row.
func (d *drawer) row(cells []string, y float64, header bool) float64 {
	lines := d.wrapRow(cells, header)
	height := d.rowHeight(lines, header)
	d.drawRow(lines, y, height, header)
	return y + height
}

func (d *drawer) setRowFont(header bool) float64 {
	l := d.layout
	if header {
		d.pdf.SetFont(l.FontFamily, "B", l.HeaderFontSize)
		return l.HeaderFontSize
	}
	d.pdf.SetFont(l.FontFamily, "", l.BodyFontSize)
	return l.BodyFontSize
}

func (d *drawer) wrapRow(cells []string, header bool) [][]string {
	d.setRowFont(header)
	lines := make([][]string, len(d.widths))
	for i, width := range d.widths {
		text := ""
		if i < len(cells) {
			text = cells[i]
		}
		lines[i] = d.wrap(text, width-2*d.layout.CellPadding)
	}
	return lines
}

func (d *drawer) lineHeight(header bool) float64 {
	size := d.layout.BodyFontSize
	if header {
		size = d.layout.HeaderFontSize
	}
	factor := d.layout.LineHeight
	if factor <= 0 {
		factor = 1.15
	}
	return size * pointsToMM * factor
}

func (d *drawer) rowHeight(lines [][]string, header bool) float64 {
	count := 1
	for _, cell := range lines {
		if len(cell) > count {
			count = len(cell)
		}
	}
	return float64(count)*d.lineHeight(header) + 2*d.layout.CellPadding
}

func (d *drawer) drawRow(lines [][]string, y, height float64, header bool) {
	l := d.layout
	fontSize := d.setRowFont(header)
	d.pdf.SetDrawColor(l.GridColor.R, l.GridColor.G, l.GridColor.B)
	style := "D"
	if header {
		d.pdf.SetFillColor(l.HeaderFill.R, l.HeaderFill.G, l.HeaderFill.B)
		d.pdf.SetTextColor(l.HeaderText.R, l.HeaderText.G, l.HeaderText.B)
		style = "FD"
	} else {
		d.pdf.SetTextColor(0, 0, 0)
	}

	lineHeight := d.lineHeight(header)
	ascent := fontSize * pointsToMM * 0.8
	x := l.MarginLeft
	for i, width := range d.widths {
		d.pdf.Rect(x, y, width, height, style)
		for j, line := range lines[i] {
			d.pdf.Text(x+l.CellPadding, y+l.CellPadding+ascent+float64(j)*lineHeight, line)
		}
		x += width
	}
}

// wrap splits text into translated lines no wider than width. Words longer
// than a line are broken by character.
func (d *drawer) wrap(text string, width float64) []string {
	text = d.tr(text)
	if text == "" {
		return nil
	}
	if width <= 0 || d.pdf.GetStringWidth(text) <= width {
		return []string{text}
	}

	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if d.pdf.GetStringWidth(candidate) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		for d.pdf.GetStringWidth(word) > width {
			cut := d.fit(word, width)
			lines = append(lines, word[:cut])
			word = word[cut:]
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// fit returns how many leading bytes of s fit in width, at least one.
// s is single-byte encoded.
func (d *drawer) fit(s string, width float64) int {
	n := 1
	for n < len(s) && d.pdf.GetStringWidth(s[:n+1]) <= width {
		n++
	}
	return n
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
