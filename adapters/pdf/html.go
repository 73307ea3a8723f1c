package exportpdf

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"

	"github.com/goliatone/go-report-export/export"
)

const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: {{.FontFamily}}, sans-serif; margin: 0; }
h1 { font-size: {{.TitleSize}}pt; margin: 0 0 2mm 0; }
p.generated { font-size: {{.SubtitleSize}}pt; margin: 0 0 3mm 0; }
table { border-collapse: collapse; table-layout: fixed; width: {{.TableWidth}}mm; }
thead { display: table-header-group; }
tr { page-break-inside: avoid; }
th, td { border: 0.2mm solid {{.GridColor}}; padding: {{.Padding}}mm; text-align: left; vertical-align: top; overflow-wrap: anywhere; }
th { background: {{.HeaderFill}}; color: {{.HeaderText}}; font-size: {{.HeaderSize}}pt; font-weight: bold; }
td { font-size: {{.BodySize}}pt; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="generated">{{.Subtitle}}</p>
{{- if .Header}}
<table>
<colgroup>{{range .Widths}}<col style="width: {{.}}mm">{{end}}</colgroup>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
{{- end}}
</body>
</html>
`

var documentHTML = template.Must(template.New("document").Parse(documentTemplate))

type htmlView struct {
	Title        string
	Subtitle     string
	Header       []string
	Rows         [][]string
	Widths       []string
	TableWidth   string
	FontFamily   template.CSS
	TitleSize    string
	SubtitleSize string
	HeaderSize   string
	BodySize     string
	Padding      string
	HeaderFill   template.CSS
	HeaderText   template.CSS
	GridColor    template.CSS
}

// WriteHTML writes doc as a printable HTML page. Cell values are escaped.
func WriteHTML(w io.Writer, doc export.Document) error {
	l := doc.Layout
	view := htmlView{
		Title:        doc.Title,
		Subtitle:     doc.Subtitle,
		Header:       doc.Header,
		Rows:         doc.Rows,
		Widths:       make([]string, len(doc.Widths)),
		FontFamily:   cssFontFamily(l.FontFamily),
		TitleSize:    number(l.TitleFontSize),
		SubtitleSize: number(l.SubtitleSize),
		HeaderSize:   number(l.HeaderFontSize),
		BodySize:     number(l.BodyFontSize),
		Padding:      number(l.CellPadding),
		HeaderFill:   cssColor(l.HeaderFill),
		HeaderText:   cssColor(l.HeaderText),
		GridColor:    cssColor(l.GridColor),
	}
	total := 0.0
	for i, width := range doc.Widths {
		view.Widths[i] = number(width)
		total += width
	}
	view.TableWidth = number(total)

	if err := documentHTML.Execute(w, view); err != nil {
		var exportErr *export.ExportError
		if errors.As(err, &exportErr) {
			return err
		}
		return export.NewError(export.KindRender, "document html", err)
	}
	return nil
}

// BuildHTML returns doc rendered by WriteHTML.
func BuildHTML(doc export.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func number(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func cssColor(c export.RGB) template.CSS {
	return template.CSS(fmt.Sprintf("rgb(%d, %d, %d)", clampByte(c.R), clampByte(c.G), clampByte(c.B)))
}

func cssFontFamily(name string) template.CSS {
	switch name {
	case "Times", "times":
		return template.CSS(`"Times New Roman"`)
	case "Courier", "courier":
		return template.CSS(`"Courier New"`)
	default:
		return template.CSS(`Helvetica, Arial`)
	}
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
