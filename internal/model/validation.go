package model

import (
	"strconv"

	pkgopenapi "github.com/observatory/quicklook/pkg/openapi"
)

func applyValidations(field *Field, schema pkgopenapi.Schema) {
	var rules []ValidationRule

	if schema.Minimum != nil {
		rules = append(rules, numericRule(ValidationRuleMin, *schema.Minimum))
	}
	if schema.Maximum != nil {
		rules = append(rules, numericRule(ValidationRuleMax, *schema.Maximum))
	}
	if schema.MinLength != nil {
		rules = append(rules, intRule(ValidationRuleMinLength, *schema.MinLength))
	}
	if schema.MaxLength != nil {
		rules = append(rules, intRule(ValidationRuleMaxLength, *schema.MaxLength))
	}
	if schema.Pattern != "" {
		rules = append(rules, ValidationRule{
			Kind:   ValidationRulePattern,
			Params: map[string]string{"pattern": schema.Pattern},
		})
	}

	if len(rules) > 0 {
		field.Validations = append(field.Validations, rules...)
	}
}

func numericRule(kind string, value float64) ValidationRule {
	return ValidationRule{
		Kind:   kind,
		Params: map[string]string{"value": strconv.FormatFloat(value, 'f', -1, 64)},
	}
}

func intRule(kind string, value int) ValidationRule {
	return ValidationRule{
		Kind:   kind,
		Params: map[string]string{"value": strconv.Itoa(value)},
	}
}
