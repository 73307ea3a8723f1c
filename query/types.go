package query

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report-export/export"
)

// ArtifactMetadata requests the metadata of a stored artifact.
type ArtifactMetadata struct {
	Key string
}

func (ArtifactMetadata) Type() string { return "report:artifact_metadata" }

func (msg ArtifactMetadata) Validate() error {
	if strings.TrimSpace(msg.Key) == "" {
		return errors.New("artifact key is required", errors.CategoryValidation).
			WithTextCode("ARTIFACT_KEY_REQUIRED")
	}
	return nil
}

// FormatValue requests the display form of a single cell.
type FormatValue struct {
	Value  any
	Column export.ColumnType
}

func (FormatValue) Type() string { return "report:format_value" }
