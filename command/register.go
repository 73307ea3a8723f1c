package command

import (
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"
)

// RegisterHandlers subscribes the report handlers on the dispatcher and,
// when reg is set, records them in the registry.
func RegisterHandlers(reg *gcmd.Registry, exp Exporter) ([]dispatcher.Subscription, error) {
	if exp == nil {
		return nil, errors.New("report exporter is required", errors.CategoryValidation).
			WithTextCode("EXPORTER_REQUIRED")
	}

	document := NewExportDocumentHandler(exp)
	workbook := NewExportWorkbookHandler(exp)

	subscriptions := []dispatcher.Subscription{
		dispatcher.SubscribeCommand(document),
		dispatcher.SubscribeCommand(workbook),
	}

	if reg != nil {
		for _, handler := range []any{document, workbook} {
			if err := reg.RegisterCommand(handler); err != nil {
				return subscriptions, err
			}
		}
	}

	return subscriptions, nil
}
