package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
)

// ExpandTemplates rewrites, in place, the string fields of the struct pointed
// to by in that carry a `template` tag. Nested structs and non-nil struct
// pointers are walked regardless of tags. Supported field types are string,
// *string and []string; `template:"-"` opts a field out.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}

	v := reflect.ValueOf(in).Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("ExpandTemplates expects *struct; got *%s", v.Type())
	}

	return expandStruct(v, variables)
}

func expandStruct(v reflect.Value, variables map[string]string) error {
	typ := v.Type()

	var errs error
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}

		tag, hasTemplate := sf.Tag.Lookup("template")
		templated := hasTemplate && tag != "-"
		field := v.Field(i)

		switch field.Kind() {
		case reflect.String:
			if templated {
				errs = errors.Join(errs, expandValue(field, sf.Name, variables))
			}

		case reflect.Slice:
			if !templated || field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				errs = errors.Join(errs, expandValue(field.Index(j), fmt.Sprintf("%s[%d]", sf.Name, j), variables))
			}

		case reflect.Ptr:
			if field.IsNil() {
				continue
			}
			elem := field.Elem()
			switch {
			case elem.Kind() == reflect.String && templated:
				expanded, err := Expand(elem.String(), variables)
				if err != nil {
					errs = errors.Join(errs, fmt.Errorf("%s: %w", sf.Name, err))
					continue
				}
				ptr := reflect.New(elem.Type())
				ptr.Elem().SetString(expanded)
				field.Set(ptr)
			case elem.Kind() == reflect.Struct:
				errs = errors.Join(errs, expandStruct(elem, variables))
			}

		case reflect.Struct:
			errs = errors.Join(errs, expandStruct(field, variables))
		}
	}

	return errs
}

func expandValue(field reflect.Value, name string, variables map[string]string) error {
	expanded, err := Expand(field.String(), variables)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	field.SetString(expanded)
	return nil
}

// Expand replaces ${VAR} references in value using variables. Referencing a
// variable that is not in the map is an error.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("environment variable %q is not in the allowed list", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}

	return result, nil
}
