package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPersonaName is used when no persona name is configured.
const DefaultPersonaName = "Chiku"

// Persona describes the character the user is chatting with.
type Persona struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Avatar   string `mapstructure:"avatar" yaml:"avatar"`
	Greeting string `mapstructure:"greeting" yaml:"greeting"`
}

type personaFilePayload struct {
	Persona Persona `yaml:"persona"`
}

// ReadPersona reads the persona section of a YAML file.
func ReadPersona(path string) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Persona{}, err
	}
	var payload personaFilePayload
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return Persona{}, err
	}
	return payload.Persona, nil
}

// merge returns p with every non-empty field of override applied.
func (p Persona) merge(override Persona) Persona {
	if v := strings.TrimSpace(override.Name); v != "" {
		p.Name = v
	}
	if v := strings.TrimSpace(override.Avatar); v != "" {
		p.Avatar = v
	}
	if v := strings.TrimSpace(override.Greeting); v != "" {
		p.Greeting = v
	}
	return p
}
