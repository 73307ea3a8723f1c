package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows = 1048576
	// DefaultColumnWidth is the uniform workbook column width, in characters.
	DefaultColumnWidth = 20.0
)

// WorkbookOptions configures workbook output.
type WorkbookOptions struct {
	ColumnWidth float64
	// PlainHeader drops the bold header style.
	PlainHeader bool
	Creator     string
}

// DefaultWorkbookOptions returns the standard workbook options.
func DefaultWorkbookOptions() WorkbookOptions {
	return WorkbookOptions{ColumnWidth: DefaultColumnWidth}
}

// WorkbookRenderer writes a formatted grid as a single-sheet XLSX workbook.
type WorkbookRenderer struct {
	Options WorkbookOptions
}

// Render writes grid into a sheet named sheetName. The whole workbook is
// produced before the first byte reaches w.
func (r WorkbookRenderer) Render(ctx context.Context, grid Grid, sheetName string, generatedAt time.Time, w io.Writer) (RenderStats, error) {
	if err := ctx.Err(); err != nil {
		return RenderStats{}, err
	}
	if len(grid.Rows)+1 > excelMaxRows {
		return RenderStats{}, NewError(KindRender, "xlsx row limit exceeded", nil)
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	defaultSheet := file.GetSheetName(0)
	if defaultSheet != sheetName {
		if err := file.SetSheetName(defaultSheet, sheetName); err != nil {
			return RenderStats{}, NewError(KindRender, fmt.Sprintf("invalid sheet name %q", sheetName), err)
		}
	}

	if err := r.setProperties(file, sheetName, generatedAt); err != nil {
		return RenderStats{}, err
	}

	stream, err := file.NewStreamWriter(sheetName)
	if err != nil {
		return RenderStats{}, NewError(KindRender, "xlsx stream writer", err)
	}

	width := r.Options.ColumnWidth
	if width <= 0 {
		width = DefaultColumnWidth
	}
	if len(grid.Header) > 0 {
		if err := stream.SetColWidth(1, len(grid.Header), width); err != nil {
			return RenderStats{}, NewError(KindRender, "xlsx column width", err)
		}
	}

	headerStyle := 0
	if !r.Options.PlainHeader {
		headerStyle, err = file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return RenderStats{}, NewError(KindRender, "xlsx header style", err)
		}
	}

	rowIndex := 1
	headers := make([]interface{}, len(grid.Header))
	for i, label := range grid.Header {
		headers[i] = excelize.Cell{StyleID: headerStyle, Value: label}
	}
	if err := stream.SetRow(cellName(rowIndex), headers); err != nil {
		return RenderStats{}, NewError(KindRender, "xlsx header row", err)
	}
	rowIndex++

	stats := RenderStats{}
	for _, row := range grid.Rows {
		if len(row) != len(grid.Header) {
			return stats, NewError(KindRender, "row length does not match header", nil)
		}
		cells := make([]interface{}, len(row))
		for i, value := range row {
			cells[i] = value
		}
		if err := stream.SetRow(cellName(rowIndex), cells); err != nil {
			return stats, NewError(KindRender, fmt.Sprintf("xlsx row %d", rowIndex), err)
		}
		rowIndex++
		stats.Rows++
	}

	if err := stream.Flush(); err != nil {
		return stats, NewError(KindRender, "xlsx flush", err)
	}

	cw := &countingWriter{w: w}
	if _, err := file.WriteTo(cw); err != nil {
		return stats, NewError(KindRender, "xlsx write", err)
	}
	stats.Bytes = cw.count
	stats.Pages = 1
	return stats, nil
}

func (r WorkbookRenderer) setProperties(file *excelize.File, title string, generatedAt time.Time) error {
	props := &excelize.DocProperties{
		Title:   title,
		Creator: r.Options.Creator,
	}
	if !generatedAt.IsZero() {
		props.Created = generatedAt.UTC().Format(time.RFC3339)
		props.Modified = props.Created
	}
	if err := file.SetDocProps(props); err != nil {
		return NewError(KindRender, "xlsx document properties", err)
	}
	return nil
}

func cellName(row int) string {
	return fmt.Sprintf("A%d", row)
}
