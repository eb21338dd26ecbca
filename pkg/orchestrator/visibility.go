package orchestrator

import (
	"fmt"

	"github.com/observatory/quicklook/pkg/model"
	"github.com/observatory/quicklook/pkg/render"
	"github.com/observatory/quicklook/pkg/visibility"
)

// applyVisibility drops conditionally hidden fields from the flat field list
// before rendering. Fields grouped under an instrument panel keep their rule
// and stay in the model: the renderer collapses the whole panel instead so
// the client can re-show it without a round trip.
func (o *Orchestrator) applyVisibility(form *model.FormModel, options render.RenderOptions) error {
	if form == nil || o.evaluator == nil {
		return nil
	}

	fields, err := o.filterFields(form.Fields, "", visibilityContext(options))
	if err != nil {
		return fmt.Errorf("orchestrator: apply visibility: %w", err)
	}
	form.Fields = fields
	return nil
}

func (o *Orchestrator) filterFields(fields []model.Field, prefix string, ctx visibility.Context) ([]model.Field, error) {
	if len(fields) == 0 {
		return fields, nil
	}

	result := make([]model.Field, 0, len(fields))
	for _, field := range fields {
		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}

		if field.VisibilityRule != "" && field.Panel == "" {
			ok, err := o.evaluator.Eval(path, field.VisibilityRule, ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		nested, err := o.filterFields(field.Nested, path, ctx)
		if err != nil {
			return nil, err
		}
		field.Nested = nested

		result = append(result, field)
	}
	return result, nil
}
