package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamType is the declared type of a tunable parameter
type ParamType string

const (
	ParamTypeInt   ParamType = "int"
	ParamTypeFloat ParamType = "float"
	ParamTypeBool  ParamType = "bool"
)

// ParamDefinition is the static declaration of a tunable parameter
type ParamDefinition struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Category    string    `yaml:"category" json:"category"`
	Type        ParamType `yaml:"type" json:"type"`
	Min         float64   `yaml:"min" json:"min"`
	Max         float64   `yaml:"max" json:"max"`
	Default     float64   `yaml:"default" json:"default"`
}

// ParamValue is a resolved parameter value. Numbers are carried as float64;
// the declared type decides how the value is rendered and persisted.
type ParamValue struct {
	Type  ParamType
	Value float64
}

// Int returns the value truncated to an integer
func (v ParamValue) Int() int64 {
	return int64(v.Value)
}

// Float returns the value as a float
func (v ParamValue) Float() float64 {
	return v.Value
}

// Bool returns true for any non-zero value
func (v ParamValue) Bool() bool {
	return v.Value != 0
}

// String renders the value the way it is stored as an override
func (v ParamValue) String() string {
	switch v.Type {
	case ParamTypeInt:
		return strconv.FormatInt(int64(v.Value), 10)
	case ParamTypeBool:
		return strconv.FormatBool(v.Value != 0)
	default:
		return strconv.FormatFloat(v.Value, 'f', -1, 64)
	}
}

// Parse converts a raw string into a value of the definition's declared type
func (d *ParamDefinition) Parse(raw string) (ParamValue, error) {
	raw = strings.TrimSpace(raw)
	switch d.Type {
	case ParamTypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// overrides written as "12.0" are still accepted as integers
			f, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil || f != float64(int64(f)) {
				return ParamValue{}, fmt.Errorf("%q is not an integer", raw)
			}
			n = int64(f)
		}
		return ParamValue{Type: d.Type, Value: float64(n)}, nil
	case ParamTypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ParamValue{}, fmt.Errorf("%q is not a number", raw)
		}
		return ParamValue{Type: d.Type, Value: f}, nil
	case ParamTypeBool:
		switch strings.ToLower(raw) {
		case "1", "true", "on", "yes":
			return ParamValue{Type: d.Type, Value: 1}, nil
		case "0", "false", "off", "no":
			return ParamValue{Type: d.Type, Value: 0}, nil
		}
		return ParamValue{}, fmt.Errorf("%q is not a boolean", raw)
	default:
		return ParamValue{}, fmt.Errorf("unknown parameter type %q", d.Type)
	}
}

// InBounds reports whether the value lies within [Min, Max]
func (d *ParamDefinition) InBounds(v ParamValue) bool {
	return v.Value >= d.Min && v.Value <= d.Max
}

// DefaultValue returns the declared default as a typed value
func (d *ParamDefinition) DefaultValue() ParamValue {
	return ParamValue{Type: d.Type, Value: d.Default}
}

// ParamState describes a parameter together with its effective value
type ParamState struct {
	Definition ParamDefinition `json:"definition"`
	Value      string          `json:"value"`
	Overridden bool            `json:"overridden"`
}
