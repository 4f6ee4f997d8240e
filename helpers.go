package proxyrot

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// setDefaultValues fills zero fields of the struct obj points to from
// their `default` tags.
func setDefaultValues(obj interface{}) {
	tof := reflect.TypeOf(obj).Elem()
	vof := reflect.ValueOf(obj).Elem()

	for i := 0; i < vof.NumField(); i++ {
		vf := vof.Field(i)
		v := tof.Field(i).Tag.Get("default")

		if v == "" || !vf.IsZero() || !vf.CanSet() {
			continue
		}

		switch vf.Kind() {
		case reflect.String:
			vf.SetString(v)
		case reflect.Int:
			if intv, err := strconv.ParseInt(v, 10, 64); err == nil {
				vf.SetInt(intv)
			}
		case reflect.Bool:
			if bv, err := strconv.ParseBool(v); err == nil {
				vf.SetBool(bv)
			}
		case reflect.Slice:
			if vf.Type().Elem().Kind() == reflect.String {
				values := strings.Split(v, ",")
				vf.Set(reflect.ValueOf(values))
			}
		}
	}
}

// validate checks `validate` tags: "required", "oneof=a|b" and "min=N".
func validate(obj interface{}) error {
	tof := reflect.TypeOf(obj).Elem()
	vof := reflect.ValueOf(obj).Elem()

	for i := 0; i < vof.NumField(); i++ {
		tf := tof.Field(i)
		vf := vof.Field(i)

		v := tf.Tag.Get("validate")
		if v == "" {
			continue
		}

		for _, rule := range strings.Split(v, ",") {
			switch {
			case rule == "required":
				if vf.IsZero() {
					return fmt.Errorf("field %q is required", fieldName(tf))
				}
			case strings.HasPrefix(rule, "oneof="):
				options := strings.Split(strings.TrimPrefix(rule, "oneof="), "|")
				if vf.Kind() == reflect.String && !slices.Contains(options, vf.String()) {
					return fmt.Errorf("field %q must be one of %s, got %q", fieldName(tf), strings.Join(options, ", "), vf.String())
				}
			case strings.HasPrefix(rule, "min="):
				min, _ := strconv.ParseInt(strings.TrimPrefix(rule, "min="), 10, 64)
				if vf.Kind() == reflect.Int && vf.Int() < min {
					return fmt.Errorf("field %q must be at least %d", fieldName(tf), min)
				}
			}
		}
	}

	return nil
}

// overlay copies every non-zero field of src into dst unless the field's
// name is in keep.
func overlay(dst, src interface{}, keep map[string]bool) {
	tof := reflect.TypeOf(dst).Elem()
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()

	for i := 0; i < dv.NumField(); i++ {
		f := dv.Field(i)
		if !f.CanSet() || keep[fieldName(tof.Field(i))] {
			continue
		}
		if s := sv.Field(i); !s.IsZero() {
			f.Set(s)
		}
	}
}

func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); name != "" {
		return name
	}
	return f.Name
}
