// Package schema describes the fields of an ingested record and the storage
// type of each one. A TypeSchema is built once and shared read-only between
// the source (to find the geometry field) and the store (to derive SQL).
package schema

import (
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SRID is the spatial reference assigned to every stored point (WGS84).
const SRID = 4326

// ValueType is the abstract storage type of a field.
type ValueType int

const (
	// Text is a variable-length string. It is also the fallback column type.
	Text ValueType = iota
	// Integer is a 64-bit integer.
	Integer
	// Float is a single-precision floating point number.
	Float
	// Point is a WGS84 point geometry built from latitude/longitude.
	Point
)

// String returns the name used in schema files.
func (t ValueType) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Point:
		return "point"
	default:
		return "unknown"
	}
}

// ParseValueType converts a schema file name into a ValueType. The legacy
// names "varchar" and "int" are accepted as well.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "varchar", "string":
		return Text, nil
	case "integer", "int", "bigint":
		return Integer, nil
	case "float", "real":
		return Float, nil
	case "point", "geometry":
		return Point, nil
	default:
		return 0, eris.Errorf("schema: unknown value type %q (valid: text, integer, float, point)", s)
	}
}

// UnmarshalYAML decodes a ValueType from its schema file name.
func (t *ValueType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return eris.Wrap(err, "schema: decode value type")
	}
	v, err := ParseValueType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// columnTypes maps each ValueType to its PostGIS column type.
var columnTypes = map[ValueType]string{
	Text:    "VARCHAR",
	Integer: "BIGINT",
	Float:   "REAL",
	Point:   "geometry(Point, 4326)",
}

// ColumnType returns the destination column type for t. Unknown values fall
// back to VARCHAR.
func ColumnType(t ValueType) string {
	if ct, ok := columnTypes[t]; ok {
		return ct
	}
	return columnTypes[Text]
}
