package service

import (
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

// settingKeyPrefix namespaces parameter overrides inside the settings table
const settingKeyPrefix = "tunable_"

func settingKey(name string) string {
	return settingKeyPrefix + name
}

// EffectiveValue resolves a parameter from its definition and an optional override.
// An override that does not parse under the declared type, or lies outside the
// declared bounds, is ignored in favour of the default.
func EffectiveValue(def models.ParamDefinition, override *string) models.ParamValue {
	if override == nil {
		return def.DefaultValue()
	}
	v, err := def.Parse(*override)
	if err != nil || !def.InBounds(v) {
		return def.DefaultValue()
	}
	return v
}

// Params is a resolved snapshot of every tunable parameter
type Params struct {
	values map[string]models.ParamValue
}

// ResolveParams builds a snapshot from definitions and raw overrides keyed by parameter name
func ResolveParams(defs []models.ParamDefinition, overrides map[string]string) *Params {
	p := &Params{values: make(map[string]models.ParamValue, len(defs))}
	for _, def := range defs {
		var override *string
		if raw, ok := overrides[def.Name]; ok {
			override = &raw
		}
		p.values[def.Name] = EffectiveValue(def, override)
	}
	return p
}

// Value returns the resolved value of a parameter
func (p *Params) Value(name string) models.ParamValue {
	v, ok := p.values[name]
	if !ok {
		log.WithField("param", name).Error("Unknown tunable parameter requested")
	}
	return v
}

func (p *Params) Float(name string) float64 {
	return p.Value(name).Float()
}

func (p *Params) Int(name string) int64 {
	return p.Value(name).Int()
}

func (p *Params) Bool(name string) bool {
	return p.Value(name).Bool()
}
