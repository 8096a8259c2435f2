// Package metadata is the mutable, convention-driven description of mapped
// types: entity types, properties, keys, foreign keys, indexes and navigations.
//
// Every fact is tagged with the ConfigurationSource that set it, so that
// conventions, data annotations and explicit configuration can compete for the
// same value with deterministic precedence. Once a Model is frozen it becomes
// logically immutable and may be read concurrently; derived values (snapshot
// slots, compiled accessors, materializers) are computed on first access and
// published once per node.
package metadata

import "fmt"

// ConfigurationSource records which configuration layer set a metadata value.
// The zero value SourceNone means "not configured" and ranks below every tier.
type ConfigurationSource int8

const (
	SourceNone ConfigurationSource = iota
	Convention
	DataAnnotation
	Explicit
)

// String returns the string representation of the configuration source
func (s ConfigurationSource) String() string {
	switch s {
	case SourceNone:
		return "none"
	case Convention:
		return "convention"
	case DataAnnotation:
		return "data_annotation"
	case Explicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// ParseConfigurationSource converts a string to a ConfigurationSource
func ParseConfigurationSource(s string) (ConfigurationSource, error) {
	switch s {
	case "none", "":
		return SourceNone, nil
	case "convention":
		return Convention, nil
	case "data_annotation":
		return DataAnnotation, nil
	case "explicit":
		return Explicit, nil
	default:
		return SourceNone, fmt.Errorf("unknown configuration source: %s", s)
	}
}

// Overrides reports whether a value set from s may replace a value set from old
func (s ConfigurationSource) Overrides(old ConfigurationSource) bool {
	switch {
	case old == SourceNone:
		return true
	case s == Explicit:
		return true
	case old == Explicit:
		return false
	case s == DataAnnotation:
		return true
	case old == DataAnnotation:
		return false
	default:
		return s == Convention
	}
}

// OverridesStrictly is Overrides restricted to genuine upgrades
func (s ConfigurationSource) OverridesStrictly(old ConfigurationSource) bool {
	return s.Overrides(old) && s != old
}

// Max returns the higher-precedence of s and other
func (s ConfigurationSource) Max(other ConfigurationSource) ConfigurationSource {
	return MaxSource(s, other)
}

// MaxSource returns the higher-precedence of a and b
func MaxSource(a, b ConfigurationSource) ConfigurationSource {
	if a >= b {
		return a
	}
	return b
}
