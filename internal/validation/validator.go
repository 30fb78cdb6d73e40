package validation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Validator validates structs from `validate` struct tags. Supported
// rules: required, email, min=N, max=N, oneof=a b c.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate expects a struct")
	}

	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		tag := fieldType.Tag.Get("validate")

		if tag == "" {
			continue
		}

		if err := v.validateField(field, tag); err != nil {
			return fmt.Errorf("%s: %w", fieldType.Name, err)
		}
	}

	return nil
}

// validateField validates a single field
func (v *Validator) validateField(field reflect.Value, tag string) error {
	rules := strings.Split(tag, ",")

	for _, rule := range rules {
		parts := strings.SplitN(rule, "=", 2)
		ruleName := parts[0]
		arg := ""
		if len(parts) == 2 {
			arg = parts[1]
		}

		switch ruleName {
		case "required":
			if field.IsZero() {
				return fmt.Errorf("field is required")
			}

		case "email":
			if field.Kind() == reflect.String {
				email := field.String()
				at := strings.Index(email, "@")
				if at <= 0 || at == len(email)-1 {
					return fmt.Errorf("invalid email format")
				}
			}

		case "min":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			if field.Kind() == reflect.String && len(field.String()) < n {
				return fmt.Errorf("minimum length is %d", n)
			}

		case "max":
			n, err := strconv.Atoi(arg)
			if err != nil {
				continue
			}
			if field.Kind() == reflect.String && len(field.String()) > n {
				return fmt.Errorf("maximum length is %d", n)
			}

		case "oneof":
			if field.Kind() != reflect.String || field.String() == "" {
				continue
			}
			allowed := strings.Fields(arg)
			ok := false
			for _, a := range allowed {
				if field.String() == a {
					ok = true
					break
				}
			}
			if !ok {
				return fmt.Errorf("must be one of: %s", arg)
			}
		}
	}

	return nil
}
