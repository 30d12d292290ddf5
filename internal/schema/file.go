package schema

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed acled.yaml
var acledYAML []byte

// file is the on-disk layout of a schema definition.
type file struct {
	Fields []Field `yaml:"fields"`
}

// Parse decodes a YAML schema definition.
func Parse(data []byte) (*TypeSchema, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "schema: parse yaml")
	}
	if len(f.Fields) == 0 {
		return nil, eris.New("schema: no fields defined")
	}
	return New(f.Fields...)
}

// LoadFile reads a YAML schema definition from path.
func LoadFile(path string) (*TypeSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}
	return Parse(data)
}

// ACLED returns the default ACLED event schema.
func ACLED() *TypeSchema {
	s, err := Parse(acledYAML)
	if err != nil {
		panic(eris.Wrap(err, "schema: embedded acled.yaml"))
	}
	return s
}
