package config

import (
	_ "embed"
	"fmt"
	"sync"

	"kzcasino/models"

	"gopkg.in/yaml.v3"
)

//go:embed tunables.yaml
var tunablesYAML []byte

type tunablesFile struct {
	Parameters []models.ParamDefinition `yaml:"parameters"`
}

var (
	tunablesOnce sync.Once
	tunables     []models.ParamDefinition
	tunablesErr  error
)

// ParamDefinitions returns the embedded tunable parameter definitions
func ParamDefinitions() ([]models.ParamDefinition, error) {
	tunablesOnce.Do(func() {
		tunables, tunablesErr = ParseParamDefinitions(tunablesYAML)
	})
	return tunables, tunablesErr
}

// ParseParamDefinitions decodes and validates a parameter definition document
func ParseParamDefinitions(data []byte) ([]models.ParamDefinition, error) {
	var file tunablesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse parameter definitions: %w", err)
	}

	seen := make(map[string]bool, len(file.Parameters))
	for _, def := range file.Parameters {
		if def.Name == "" {
			return nil, fmt.Errorf("parameter definition without a name")
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("duplicate parameter definition %q", def.Name)
		}
		seen[def.Name] = true

		switch def.Type {
		case models.ParamTypeInt, models.ParamTypeFloat, models.ParamTypeBool:
		default:
			return nil, fmt.Errorf("parameter %q has unknown type %q", def.Name, def.Type)
		}
		if def.Min > def.Max {
			return nil, fmt.Errorf("parameter %q has min %v above max %v", def.Name, def.Min, def.Max)
		}
		if def.Default < def.Min || def.Default > def.Max {
			return nil, fmt.Errorf("parameter %q default %v is outside [%v, %v]", def.Name, def.Default, def.Min, def.Max)
		}
	}

	return file.Parameters, nil
}
