package export

import (
	"context"
	"io"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ColumnType is the semantic type of a column. It governs formatting only.
type ColumnType string

const (
	TypeText       ColumnType = "text"
	TypeCurrency   ColumnType = "currency"
	TypePercentage ColumnType = "percentage"
	TypeDate       ColumnType = "date"
)

// Column describes one table column.
type Column struct {
	Key   string
	Title string
	Type  ColumnType
}

// Record maps column keys to raw values.
type Record map[string]any

// Dataset is the sole input of both export pipelines.
type Dataset struct {
	Title   string
	Headers []Column
	Rows    []Record
}

// Grid is a dataset with every cell formatted, in header order.
type Grid struct {
	Header []string
	Rows   [][]string
}

// Artifact describes a finished export.
type Artifact struct {
	ID          string
	Format      Format
	Filename    string
	ContentType string
	Size        int64
	Rows        int
	Pages       int
	GeneratedAt time.Time
	Ref         ArtifactRef
	Data        []byte
}

// ArtifactMeta captures stored artifact metadata.
type ArtifactMeta struct {
	ContentType string
	Size        int64
	Filename    string
	CreatedAt   time.Time
}

// ArtifactRef references a stored artifact.
type ArtifactRef struct {
	Key  string
	Meta ArtifactMeta
}

// ArtifactStore persists finished artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key string, r io.Reader, meta ArtifactMeta) (ArtifactRef, error)
}

// ArtifactOpener reads stored artifacts back.
type ArtifactOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, ArtifactMeta, error)
}

// DocumentRenderer draws a prepared document as a paginated artifact.
type DocumentRenderer interface {
	RenderDocument(ctx context.Context, doc Document, w io.Writer) (RenderStats, error)
}

// DocumentRendererFunc adapts a function to a DocumentRenderer.
type DocumentRendererFunc func(ctx context.Context, doc Document, w io.Writer) (RenderStats, error)

func (f DocumentRendererFunc) RenderDocument(ctx context.Context, doc Document, w io.Writer) (RenderStats, error) {
	if f == nil {
		return RenderStats{}, NewError(KindInternal, "document renderer func is nil", nil)
	}
	return f(ctx, doc, w)
}

// RenderStats capture renderer output.
type RenderStats struct {
	Rows  int64
	Bytes int64
	Pages int
}

// FormatOptions configures locale/timezone formatting.
type FormatOptions struct {
	Locale         string
	CurrencyLocale string
	Timezone       string
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
