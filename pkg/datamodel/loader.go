package datamodel

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Datamodel is the set of models known to the connector.
type Datamodel struct {
	Models []*Model `yaml:"models" validate:"required,min=1,dive"`

	byName map[string]*Model
}

// New links the given models into a datamodel.
func New(models ...*Model) (*Datamodel, error) {
	dm := &Datamodel{Models: models}
	if err := dm.link(); err != nil {
		return nil, err
	}
	return dm, nil
}

// LoadFile reads and validates a YAML datamodel file.
func LoadFile(path string) (*Datamodel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read datamodel file: %w", err)
	}

	dm, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid datamodel %s: %w", path, err)
	}
	return dm, nil
}

// Parse decodes and validates a YAML datamodel document.
func Parse(data []byte) (*Datamodel, error) {
	var dm Datamodel
	if err := yaml.Unmarshal(data, &dm); err != nil {
		return nil, fmt.Errorf("failed to parse datamodel YAML: %w", err)
	}

	if err := newValidator().Struct(&dm); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := dm.link(); err != nil {
		return nil, err
	}
	return &dm, nil
}

// Model looks up a model by name.
func (dm *Datamodel) Model(name string) (*Model, error) {
	if m, ok := dm.byName[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("unknown model %q", name)
}

func (dm *Datamodel) link() error {
	dm.byName = make(map[string]*Model, len(dm.Models))
	for _, m := range dm.Models {
		if _, dup := dm.byName[m.Name]; dup {
			return fmt.Errorf("duplicate model %q", m.Name)
		}
		if err := m.link(); err != nil {
			return err
		}
		dm.byName[m.Name] = m
	}

	for _, m := range dm.Models {
		for _, f := range m.Fields {
			if f.Type != TypeRelation {
				continue
			}
			if _, ok := dm.byName[f.RelatedModel]; !ok {
				return fmt.Errorf("model %s: field %s relates to unknown model %q", m.Name, f.Name, f.RelatedModel)
			}
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return v
}

// IsIdentifier reports whether s is usable as a model, field or database name.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}
