package options

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"

	"elicate/pkg/chattypes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// encodeValue serializes an override value for the persistence layer.
func encodeValue(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeValue parses a persisted value and coerces it to the default's type.
func decodeValue(d chattypes.OptionDescriptor, raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return coerce(d.DefaultValue, v)
}

// coerce converts v to the dynamic type of def so that resolved values keep a
// stable type regardless of which layer they come from.
func coerce(def any, v any) (any, error) {
	switch def.(type) {
	case nil:
		return v, nil
	case string:
		return cast.ToStringE(v)
	case bool:
		return cast.ToBoolE(v)
	case int:
		return cast.ToIntE(v)
	case int64:
		return cast.ToInt64E(v)
	case float64:
		return cast.ToFloat64E(v)
	case float32:
		return cast.ToFloat32E(v)
	case []string:
		return cast.ToStringSliceE(v)
	case map[string]any:
		return cast.ToStringMapE(v)
	case map[string]string:
		return cast.ToStringMapStringE(v)
	default:
		return v, nil
	}
}

// cloneValue copies slice and map values so callers cannot mutate stored state.
func cloneValue(v any) any {
	switch tv := v.(type) {
	case []string:
		return append([]string(nil), tv...)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = val
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(tv))
		for k, val := range tv {
			out[k] = val
		}
		return out
	default:
		return v
	}
}

// As converts a resolved value to T, coercing with spf13/cast when the stored
// type differs.
func As[T any](r chattypes.ResolvedOption) (T, error) {
	var zero T
	if v, ok := r.Value.(T); ok {
		return v, nil
	}

	var (
		out any
		err error
	)
	switch any(zero).(type) {
	case string:
		out, err = cast.ToStringE(r.Value)
	case bool:
		out, err = cast.ToBoolE(r.Value)
	case int:
		out, err = cast.ToIntE(r.Value)
	case int64:
		out, err = cast.ToInt64E(r.Value)
	case float64:
		out, err = cast.ToFloat64E(r.Value)
	case []string:
		out, err = cast.ToStringSliceE(r.Value)
	default:
		return zero, fmt.Errorf("cannot convert %T to %T", r.Value, zero)
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}
