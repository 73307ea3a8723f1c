package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report-export/export"
)

// ArtifactMetadataHandler reads artifact metadata without streaming the body.
type ArtifactMetadataHandler struct {
	Artifacts export.ArtifactOpener
}

func NewArtifactMetadataHandler(artifacts export.ArtifactOpener) *ArtifactMetadataHandler {
	return &ArtifactMetadataHandler{Artifacts: artifacts}
}

func (h *ArtifactMetadataHandler) Query(ctx context.Context, msg ArtifactMetadata) (export.ArtifactRef, error) {
	if h == nil || h.Artifacts == nil {
		return export.ArtifactRef{}, errors.New("artifact store is required", errors.CategoryInternal).
			WithTextCode("STORE_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return export.ArtifactRef{}, err
	}
	reader, meta, err := h.Artifacts.Open(ctx, msg.Key)
	if err != nil {
		return export.ArtifactRef{}, export.AsGoError(err)
	}
	_ = reader.Close()
	return export.ArtifactRef{Key: msg.Key, Meta: meta}, nil
}

// FormatValueHandler formats single values with a configured formatter.
type FormatValueHandler struct {
	Formatter export.Formatter
}

func NewFormatValueHandler(formatter export.Formatter) *FormatValueHandler {
	return &FormatValueHandler{Formatter: formatter}
}

func (h *FormatValueHandler) Query(ctx context.Context, msg FormatValue) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var formatter export.Formatter
	if h != nil {
		formatter = h.Formatter
	}
	value, err := formatter.Format(msg.Value, msg.Column)
	if err != nil {
		return "", export.AsGoError(err)
	}
	return value, nil
}
