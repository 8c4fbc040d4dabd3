package chattypes

import "fmt"

// DuplicateOptionError is returned when a registration would create a second option with the same key.
type DuplicateOptionError struct {
	Key string
}

func (e *DuplicateOptionError) Error() string {
	return fmt.Sprintf("duplicate option %s", e.Key)
}

// InvalidScopeError is returned when an override targets a layer the option's scope does not allow.
type InvalidScopeError struct {
	Key   string
	Layer Layer
	Scope Scope
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("option %s has %s scope and cannot be overridden at the %s layer", e.Key, e.Scope, e.Layer)
}

// OptionNotFoundError is returned when resolving or writing an unregistered option.
type OptionNotFoundError struct {
	Key string
}

func (e *OptionNotFoundError) Error() string {
	return fmt.Sprintf("option %s not found", e.Key)
}

// InvalidValueError is returned when a value cannot be coerced to the option's type.
type InvalidValueError struct {
	Key   string
	Cause error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for option %s: %v", e.Key, e.Cause)
}

func (e *InvalidValueError) Unwrap() error {
	return e.Cause
}

// PluginExecutionError is returned when a plugin hook fails or returns a malformed result.
type PluginExecutionError struct {
	PluginID string
	Hook     string
	Cause    error
}

func (e *PluginExecutionError) Error() string {
	return fmt.Sprintf("plugin %s failed in %s: %v", e.PluginID, e.Hook, e.Cause)
}

func (e *PluginExecutionError) Unwrap() error {
	return e.Cause
}

// PluginNotFoundError is returned when a plugin id is not in the catalog.
type PluginNotFoundError struct {
	ID string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin %s not found", e.ID)
}

// IncompatiblePluginError is returned when a plugin requires a different host version.
type IncompatiblePluginError struct {
	ID          string
	Constraint  string
	HostVersion string
}

func (e *IncompatiblePluginError) Error() string {
	return fmt.Sprintf("plugin %s requires host %s, running %s", e.ID, e.Constraint, e.HostVersion)
}
