package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ncobase/blobjob/job"
	"github.com/ncobase/blobjob/oss"
)

// errorMessages is a nested map of languages to validation tags to custom error messages.
var errorMessages = map[string]map[string]string{
	"en": {
		"required":            "The field '%s' is required.",
		"gte":                 "The field '%s' must be greater than or equal to %s.",
		"action":              "The field '%s' must be one of COPY, MOVE, DELETE, MERGE.",
		"location":            "The field '%s' must be a location of the form bucket/key.",
		"required_for_action": "The field '%s' is required for action %s.",
		"excluded_for_action": "The field '%s' is not allowed for action %s.",
		"unique":              "The field '%s' must be unique, %s is repeated.",
	},
	"zh": {
		"required":            "字段 '%s' 为必填项。",
		"gte":                 "字段 '%s' 的值必须大于或等于 %s。",
		"action":              "字段 '%s' 必须是 COPY、MOVE、DELETE、MERGE 之一。",
		"location":            "字段 '%s' 必须是 bucket/key 形式的位置。",
		"required_for_action": "字段 '%s' 在操作 %s 中为必填项。",
		"excluded_for_action": "字段 '%s' 不允许用于操作 %s。",
		"unique":              "字段 '%s' 的值必须唯一，%s 重复。",
	},
}

// parseMessage constructs a friendly error message based on the validation tag and custom messages.
func parseMessage(field, tag, param string, lang string) string {
	if msgs, exists := errorMessages[lang]; exists {
		if msg, exists := msgs[tag]; exists {
			switch strings.Count(msg, "%s") {
			case 1:
				return fmt.Sprintf(msg, field)
			case 2:
				return fmt.Sprintf(msg, field, param)
			}
		}
	}
	return fmt.Sprintf("Field '%s' is invalid: %s", field, tag)
}

// newValidate builds a validator aware of the step tags and rules.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names so messages match the stored document
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("action", func(fl validator.FieldLevel) bool {
		return job.Action(fl.Field().String()).Known()
	})
	_ = v.RegisterValidation("location", func(fl validator.FieldLevel) bool {
		_, err := oss.ParseLocation(fl.Field().String())
		return err == nil
	})
	v.RegisterStructValidation(stepFieldsForAction, job.Step{})
	return v
}

// stepFieldsForAction requires exactly the location fields the action uses.
func stepFieldsForAction(sl validator.StructLevel) {
	s := sl.Current().Interface().(job.Step)
	if !s.Action.Known() {
		return
	}
	action := string(s.Action)

	check := func(value any, present, needed bool, name, structName string) {
		switch {
		case needed && !present:
			sl.ReportError(value, name, structName, "required_for_action", action)
		case !needed && present:
			sl.ReportError(value, name, structName, "excluded_for_action", action)
		}
	}
	check(s.Source, s.Source != "", s.Action.NeedsSource(), "source", "Source")
	check(s.Sources, len(s.Sources) > 0, s.Action.NeedsSources(), "sources", "Sources")
	check(s.Destination, s.Destination != "", s.Action.NeedsDestination(), "destination", "Destination")
}
