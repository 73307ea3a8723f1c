package export

import "fmt"

// BuildGrid formats every row of rows in header order. A record missing a
// header key yields an empty cell.
func BuildGrid(headers []Column, rows []Record, formatter Formatter) (Grid, error) {
	grid := Grid{
		Header: HeaderTitles(headers),
		Rows:   make([][]string, 0, len(rows)),
	}

	for rowIdx, record := range rows {
		cells := make([]string, len(headers))
		for colIdx, col := range headers {
			value, ok := record[col.Key]
			if !ok {
				continue
			}
			formatted, err := formatter.Format(value, col.Type)
			if err != nil {
				return Grid{}, NewError(KindFormatting, fmt.Sprintf("row %d column %q", rowIdx+1, col.Key), err)
			}
			cells[colIdx] = formatted
		}
		grid.Rows = append(grid.Rows, cells)
	}
	return grid, nil
}

// HeaderTitles returns the display titles of headers in order. A column
// without a title is labelled by its key.
func HeaderTitles(headers []Column) []string {
	titles := make([]string, len(headers))
	for i, col := range headers {
		label := col.Title
		if label == "" {
			label = col.Key
		}
		titles[i] = label
	}
	return titles
}

// Records returns the header row followed by the body rows.
func (g Grid) Records() [][]string {
	records := make([][]string, 0, len(g.Rows)+1)
	records = append(records, g.Header)
	records = append(records, g.Rows...)
	return records
}
