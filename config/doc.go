// Package config loads and validates the conveyor configuration.
//
// Configuration is plain YAML. Load applies defaults before validation, so a
// missing file section means "use the default", while a present-but-wrong
// value is a hard error. All validation failures carry the invalid error
// class so callers can distinguish bad input from runtime faults.
package config
