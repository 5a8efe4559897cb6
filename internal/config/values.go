package config

import (
	"reflect"
	"strings"
	"time"
)

// ListValues returns all settings as a flat map keyed by dot-separated json
// names. Durations are rendered as strings. When mask is true, secret values
// are masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	flat := Flatten(toMap(reflect.ValueOf(*cfg)))
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns one setting by its dot-separated key.
func GetValue(cfg *Config, key string) (any, bool) {
	flat, _ := ListValues(cfg, true)
	v, ok := flat[key]
	return v, ok
}

var durationType = reflect.TypeOf(time.Duration(0))

func toMap(v reflect.Value) map[string]any {
	out := make(map[string]any)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		fv := v.Field(i)
		switch {
		case f.Type == durationType:
			out[name] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct:
			out[name] = toMap(fv)
		default:
			out[name] = fv.Interface()
		}
	}
	return out
}
