package exporthttp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-report-export/export"
)

// DefaultMaxBodyBytes caps dataset request bodies.
const DefaultMaxBodyBytes int64 = 16 * 1024 * 1024

type datasetPayload struct {
	Title   string           `json:"title"`
	Headers []columnPayload  `json:"headers"`
	Rows    []map[string]any `json:"rows"`
}

type columnPayload struct {
	Key   string            `json:"key"`
	Title string            `json:"title"`
	Type  export.ColumnType `json:"type,omitempty"`
}

// DecodeDataset reads a JSON dataset body. Numbers are kept as json.Number
// so large values and epoch timestamps survive decoding.
func DecodeDataset(r *http.Request, maxBytes int64) (export.Dataset, error) {
	if r.Body == nil {
		return export.Dataset{}, export.NewError(export.KindValidation, "request body is required", nil)
	}
	defer r.Body.Close()
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBytes+1))
	decoder.UseNumber()
	var payload datasetPayload
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return export.Dataset{}, export.NewError(export.KindValidation, "request body is required", err)
		}
		return export.Dataset{}, export.NewError(export.KindValidation, "invalid dataset json", err)
	}
	if decoder.InputOffset() > maxBytes {
		return export.Dataset{}, export.NewError(export.KindValidation, "request body too large", nil)
	}

	ds := export.Dataset{
		Title:   payload.Title,
		Headers: make([]export.Column, 0, len(payload.Headers)),
		Rows:    make([]export.Record, 0, len(payload.Rows)),
	}
	for _, col := range payload.Headers {
		if strings.TrimSpace(col.Key) == "" {
			return export.Dataset{}, export.NewError(export.KindValidation, "column key is required", nil)
		}
		ds.Headers = append(ds.Headers, export.Column{Key: col.Key, Title: col.Title, Type: col.Type})
	}
	for _, row := range payload.Rows {
		ds.Rows = append(ds.Rows, export.Record(row))
	}
	return ds, nil
}
