package chattypes

import (
	"fmt"

	"github.com/spf13/cast"
)

// ReadString resolves an option through r and converts it to a string.
func ReadString(r OptionReader, optionID string) (string, error) {
	resolved, err := r.Resolve(optionID)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(resolved.Value)
}

// ReadBool resolves an option through r and converts it to a bool.
func ReadBool(r OptionReader, optionID string) (bool, error) {
	resolved, err := r.Resolve(optionID)
	if err != nil {
		return false, err
	}
	return cast.ToBoolE(resolved.Value)
}

// ReadInt resolves an option through r and converts it to an int.
func ReadInt(r OptionReader, optionID string) (int, error) {
	resolved, err := r.Resolve(optionID)
	if err != nil {
		return 0, err
	}
	v, err := cast.ToIntE(resolved.Value)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", optionID, err)
	}
	return v, nil
}

// ReadFloat resolves an option through r and converts it to a float64.
func ReadFloat(r OptionReader, optionID string) (float64, error) {
	resolved, err := r.Resolve(optionID)
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(resolved.Value)
}
