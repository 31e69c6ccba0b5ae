package llm

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var personasYAML []byte

// PersonaCatalog holds the coach personas keyed by mode and the prompt-version
// modifiers appended to them.
type PersonaCatalog struct {
	Default  string            `yaml:"default"`
	Personas map[string]string `yaml:"personas"`
	Versions map[string]string `yaml:"versions"`
}

// LoadPersonas parses the embedded persona catalog.
func LoadPersonas() (PersonaCatalog, error) {
	return ParsePersonas(personasYAML)
}

func ParsePersonas(raw []byte) (PersonaCatalog, error) {
	var catalog PersonaCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return PersonaCatalog{}, fmt.Errorf("parse personas: %w", err)
	}
	if _, ok := catalog.Personas[catalog.Default]; !ok {
		return PersonaCatalog{}, fmt.Errorf("default persona %q not defined", catalog.Default)
	}
	return catalog, nil
}

// MustLoadPersonas panics if the embedded catalog is broken.
func MustLoadPersonas() PersonaCatalog {
	catalog, err := LoadPersonas()
	if err != nil {
		panic(err)
	}
	return catalog
}

// Mode normalizes a requested mode, falling back to the default persona.
func (c PersonaCatalog) Mode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if _, ok := c.Personas[mode]; ok {
		return mode
	}
	return c.Default
}

// Version normalizes a prompt version; unknown versions become A.
func (c PersonaCatalog) Version(version string) string {
	version = strings.ToUpper(strings.TrimSpace(version))
	if _, ok := c.Versions[version]; ok {
		return version
	}
	return "A"
}

// Persona returns the persona text for mode with the version modifier applied.
func (c PersonaCatalog) Persona(mode, version string) string {
	persona := strings.TrimSpace(c.Personas[c.Mode(mode)])
	if modifier := strings.TrimSpace(c.Versions[c.Version(version)]); modifier != "" {
		persona += " " + modifier
	}
	return persona
}
