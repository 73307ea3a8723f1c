package command

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-report-export/export"
)

// ExportDocument renders a dataset as a PDF document.
type ExportDocument struct {
	Dataset export.Dataset
	Result  *export.Artifact
}

func (ExportDocument) Type() string { return "report:export_document" }

func (msg ExportDocument) Validate() error {
	return validateDataset(msg.Dataset)
}

// ExportWorkbook renders a dataset as an XLSX workbook.
type ExportWorkbook struct {
	Dataset export.Dataset
	Result  *export.Artifact
}

func (ExportWorkbook) Type() string { return "report:export_workbook" }

func (msg ExportWorkbook) Validate() error {
	return validateDataset(msg.Dataset)
}

func validateDataset(ds export.Dataset) error {
	if strings.TrimSpace(ds.Title) == "" {
		return errors.New("report title is required", errors.CategoryValidation).
			WithTextCode("TITLE_REQUIRED")
	}
	for _, col := range ds.Headers {
		if strings.TrimSpace(col.Key) == "" {
			return errors.New("column key is required", errors.CategoryValidation).
				WithTextCode("COLUMN_KEY_REQUIRED")
		}
	}
	return nil
}
