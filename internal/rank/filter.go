// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package rank

import (
	"sort"
	"strings"

	"github.com/curio-dev/curio/internal/corpus"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// Op identifies the predicate a constraint applies.
type Op string

const (
	OpEquals Op = "eq"
	OpRange  Op = "range"
	OpIn     Op = "in"
)

// Constraint is one parsed filter: an attribute name plus a predicate. A
// candidate survives filtering only if every constraint matches.
type Constraint struct {
	Key string
	Op  Op

	// Equals holds the expected value for OpEquals.
	Equals any
	// Min and Max bound an inclusive numeric range for OpRange; nil means
	// unbounded on that side.
	Min *float64
	Max *float64
	// Set holds the allowed values for OpIn.
	Set []any
}

// ParseFilters validates a request's raw filter mapping against the declared
// vocabulary and returns the parsed constraints. A constraint value may be a
// scalar (equality), a list (set membership), or a min/max object (inclusive
// numeric range). Numeric fields additionally accept the flattened spellings
// "<field>_min" and "<field>_max". Unknown keys are an error, never silently
// ignored: a typo must not return unfiltered results.
func (c *Config) ParseFilters(raw map[string]any) ([]Constraint, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// Sorted keys keep the first reported error stable across runs.
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	constraints := make([]Constraint, 0, len(raw))
	for _, key := range keys {
		constraint, err := c.parseConstraint(key, raw[key])
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, constraint)
	}
	return constraints, nil
}

func (c *Config) parseConstraint(key string, value any) (Constraint, error) {
	if ft, ok := c.FilterableFields[key]; ok {
		return c.parseFieldConstraint(key, ft, value)
	}

	// Flattened range spellings: price_max / price_min.
	for _, suffix := range []string{"_min", "_max"} {
		base := strings.TrimSuffix(key, suffix)
		if base == key {
			continue
		}
		ft, ok := c.FilterableFields[base]
		if !ok {
			continue
		}
		if ft != FieldTypeNumber {
			return Constraint{}, curioerr.New(curioerr.CodeFilterTypeMismatch,
				"range filter on non-numeric field", curioerr.Field("key", key))
		}
		bound, ok := toNumber(value)
		if !ok {
			return Constraint{}, curioerr.New(curioerr.CodeFilterTypeMismatch,
				"range bound must be a number", curioerr.Field("key", key))
		}
		constraint := Constraint{Key: base, Op: OpRange}
		if suffix == "_min" {
			constraint.Min = &bound
		} else {
			constraint.Max = &bound
		}
		return constraint, nil
	}

	return Constraint{}, curioerr.New(curioerr.CodeFilterUnknownKey,
		"unknown filter key", curioerr.Field("key", key))
}

func (c *Config) parseFieldConstraint(key string, ft FieldType, value any) (Constraint, error) {
	switch v := value.(type) {
	case map[string]any:
		return parseRange(key, ft, v)
	case []any:
		return parseSet(key, ft, v)
	default:
		if !valueMatchesType(value, ft) {
			return Constraint{}, curioerr.New(curioerr.CodeFilterTypeMismatch,
				"filter value does not match field type",
				curioerr.Field("key", key), curioerr.Field("field_type", string(ft)))
		}
		return Constraint{Key: key, Op: OpEquals, Equals: value}, nil
	}
}

func parseRange(key string, ft FieldType, bounds map[string]any) (Constraint, error) {
	if ft != FieldTypeNumber {
		return Constraint{}, curioerr.New(curioerr.CodeFilterTypeMismatch,
			"range filter on non-numeric field", curioerr.Field("key", key))
	}
	if len(bounds) == 0 {
		return Constraint{}, curioerr.New(curioerr.CodeFilterValueInvalid,
			"range filter needs a min or max bound", curioerr.Field("key", key))
	}

	constraint := Constraint{Key: key, Op: OpRange}
	for name, raw := range bounds {
		bound, ok := toNumber(raw)
		if !ok {
			return Constraint{}, curioerr.New(curioerr.CodeFilterTypeMismatch,
				"range bound must be a number", curioerr.Field("key", key), curioerr.Field("bound", name))
		}
		switch name {
		case "min":
			constraint.Min = &bound
		case "max":
			constraint.Max = &bound
		default:
			return Constraint{}, curioerr.New(curioerr.CodeFilterValueInvalid,
				"unsupported range bound", curioerr.Field("key", key), curioerr.Field("bound", name))
		}
	}

	if constraint.Min != nil && constraint.Max != nil && *constraint.Min > *constraint.Max {
		return Constraint{}, curioerr.Errorf(curioerr.CodeFilterValueInvalid,
			"range min %v exceeds max %v for filter %q", *constraint.Min, *constraint.Max, key)
	}
	return constraint, nil
}

func parseSet(key string, ft FieldType, members []any) (Constraint, error) {
	if len(members) == 0 {
		return Constraint{}, curioerr.New(curioerr.CodeFilterValueInvalid,
			"set filter must not be empty", curioerr.Field("key", key))
	}
	for _, member := range members {
		if !valueMatchesType(member, ft) {
			return Constraint{}, curioerr.New(curioerr.CodeFilterTypeMismatch,
				"set member does not match field type",
				curioerr.Field("key", key), curioerr.Field("field_type", string(ft)))
		}
	}
	return Constraint{Key: key, Op: OpIn, Set: members}, nil
}

// Matches reports whether the item satisfies the constraint. An item that
// lacks the constrained attribute does not match.
func (c Constraint) Matches(item *corpus.Item) bool {
	attr, ok := item.Attribute(c.Key)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEquals:
		return valuesEqual(attr, c.Equals)
	case OpRange:
		v, ok := toNumber(attr)
		if !ok {
			return false
		}
		if c.Min != nil && v < *c.Min {
			return false
		}
		if c.Max != nil && v > *c.Max {
			return false
		}
		return true
	case OpIn:
		for _, member := range c.Set {
			if valuesEqual(attr, member) {
				return true
			}
		}
		return false
	}
	return false
}

func valueMatchesType(value any, ft FieldType) bool {
	switch ft {
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeNumber:
		_, ok := toNumber(value)
		return ok
	}
	return false
}

func valuesEqual(attr, expected any) bool {
	if s, ok := expected.(string); ok {
		got, ok := attr.(string)
		return ok && got == s
	}
	av, aok := toNumber(attr)
	ev, eok := toNumber(expected)
	return aok && eok && av == ev
}

// toNumber widens the numeric types that reach filters from decoded JSON,
// YAML config, or Go callers.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
