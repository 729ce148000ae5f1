package browser

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/formweaver/formweaver/api/schemas"
	"github.com/formweaver/formweaver/internal/mapping"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoFillableForm is returned when no detected form has at least one field
// the rule set can map to a row column.
var ErrNoFillableForm = errors.New("no fillable form on page")

// FillAction is one planned keystroke target: put Value into the control
// addressed by Selector.
type FillAction struct {
	Field    schemas.FieldDescriptor
	Selector string
	Value    string
}

// FillPlan is the concrete work list for one row against one form. The first
// form that yields at least one action wins; later forms are not attempted.
type FillPlan struct {
	Form    schemas.FormDescriptor
	Actions []FillAction
}

// NormalizeRow flattens an input row into column name to value. Maps are used
// directly; anything else is round-tripped through JSON so struct rows and
// decoded spreadsheet rows behave the same.
func NormalizeRow(row any) (map[string]string, error) {
	switch r := row.(type) {
	case nil:
		return nil, errors.New("row is nil")
	case map[string]string:
		return r, nil
	case map[string]any:
		out := make(map[string]string, len(r))
		for k, v := range r {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out, nil
	default:
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("failed to flatten row: %w", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("row does not flatten to columns: %w", err)
		}
		out := make(map[string]string, len(decoded))
		for k, v := range decoded {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out, nil
	}
}

// PlanSubmission picks the form to fill and the actions to take. Forms are
// considered in detection order; the first one with at least one mapped field
// whose column exists in the row is selected.
func PlanSubmission(forms []schemas.FormDescriptor, rules []schemas.MappingRule, row map[string]string) (*FillPlan, error) {
	for _, form := range forms {
		suggestions := mapping.SuggestMappings(form.Fields, rules)

		var actions []FillAction
		for _, s := range suggestions {
			if !s.Mapped() {
				continue
			}
			value, ok := row[*s.Mapping]
			if !ok {
				continue
			}
			actions = append(actions, FillAction{
				Field:    s.Field,
				Selector: selectorFor(s.Field),
				Value:    value,
			})
		}
		if len(actions) > 0 {
			return &FillPlan{Form: form, Actions: actions}, nil
		}
	}
	return nil, ErrNoFillableForm
}

// selectorFor builds a CSS selector addressing the field, preferring the id.
func selectorFor(field schemas.FieldDescriptor) string {
	if field.ID != "" {
		return fmt.Sprintf("[id=%q]", field.ID)
	}
	return fmt.Sprintf("[name=%q]", field.Name)
}

// captchaMarkers are widget-specific class names and frame-source fragments
// that give away a CAPTCHA wall. The bare word "captcha" is deliberately
// absent: prose or script URLs merely mentioning it must not fail a row.
var captchaMarkers = []string{
	"g-recaptcha",
	"recaptcha/api",
	"hcaptcha.com",
	"h-captcha",
	"cf-turnstile",
	"challenges.cloudflare.com",
}

// looksLikeCaptcha reports whether raw page HTML carries a known CAPTCHA
// widget marker.
func looksLikeCaptcha(pageHTML string) bool {
	lower := strings.ToLower(pageHTML)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
