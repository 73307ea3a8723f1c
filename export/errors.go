package export

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines export error kinds.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindFormatting  ErrorKind = "formatting"
	KindRender      ErrorKind = "render"
	KindPersistence ErrorKind = "persistence"
	KindNotFound    ErrorKind = "not_found"
	KindTimeout     ErrorKind = "timeout"
	KindCanceled    ErrorKind = "canceled"
	KindInternal    ErrorKind = "internal"
)

var (
	// ErrDocumentExport is the only error document exports surface.
	ErrDocumentExport = errors.New("document export failed")
	// ErrWorkbookExport is the only error workbook exports surface.
	ErrWorkbookExport = errors.New("workbook export failed")
)

// ExportError wraps errors with a kind.
type ExportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewError creates a new export error.
func NewError(kind ErrorKind, msg string, err error) *ExportError {
	return &ExportError{Kind: kind, Msg: msg, Err: err}
}

// PipelineError is returned at the pipeline boundary. Its message is the
// generic pipeline failure; the cause is only reachable by unwrapping.
type PipelineError struct {
	Format Format
	Err    error

	base error
}

func newPipelineError(format Format, cause error) *PipelineError {
	base := ErrDocumentExport
	if format == FormatXLSX {
		base = ErrWorkbookExport
	}
	return &PipelineError{Format: format, Err: cause, base: base}
}

func (e *PipelineError) Error() string {
	if e.base == nil {
		return "export failed"
	}
	return e.base.Error()
}

func (e *PipelineError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.base != nil {
		errs = append(errs, e.base)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Cause returns the original failure.
func (e *PipelineError) Cause() error {
	return e.Err
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		code := "document_export_failed"
		if pipelineErr.Format == FormatXLSX {
			code = "workbook_export_failed"
		}
		category := errorslib.CategoryInternal
		switch KindFromError(pipelineErr.Err) {
		case KindValidation:
			category = errorslib.CategoryValidation
		case KindFormatting:
			category = errorslib.CategoryBadInput
		case KindTimeout, KindCanceled:
			category = errorslib.CategoryOperation
		}
		return errorslib.New(pipelineErr.Error(), category).WithTextCode(code)
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()
	var exportErr *ExportError
	if errors.As(err, &exportErr) && exportErr.Msg != "" {
		msg = exportErr.Msg
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindFormatting:
		return errorslib.New(msg, errorslib.CategoryBadInput).WithTextCode("formatting")
	case KindRender:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("render")
	case KindPersistence:
		return errorslib.New(msg, errorslib.CategoryExternal).WithTextCode("persistence")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its export error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}
