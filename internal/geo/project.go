// Package geo turns raw latitude/longitude fields into a stored point geometry.
package geo

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/ewkbhex"

	"github.com/sells-group/acled-ingest/internal/schema"
)

// Coordinate field names read from every raw record.
const (
	LatitudeField  = "latitude"
	LongitudeField = "longitude"
)

// Projector replaces a record's coordinate fields with a point geometry.
type Projector struct {
	field   string // Point field name
	keepLat bool
	keepLon bool
}

// NewProjector creates a Projector for types. The schema must declare exactly
// one Point field. Coordinate fields are kept in projected records only when
// the schema also declares them as columns.
func NewProjector(types *schema.TypeSchema) (*Projector, error) {
	field, err := types.GeometryField()
	if err != nil {
		return nil, eris.Wrap(err, "geo: projector")
	}
	_, keepLat := types.Lookup(LatitudeField)
	_, keepLon := types.Lookup(LongitudeField)
	return &Projector{
		field:   field,
		keepLat: keepLat,
		keepLon: keepLon,
	}, nil
}

// Field returns the name the geometry is stored under.
func (p *Projector) Field() string { return p.field }

// Project returns a copy of rec with the geometry under the Point field name.
func (p *Projector) Project(rec schema.Record) (schema.Record, error) {
	lon, err := coordinate(rec, LongitudeField)
	if err != nil {
		return nil, err
	}
	lat, err := coordinate(rec, LatitudeField)
	if err != nil {
		return nil, err
	}

	encoded, err := Encode(lon, lat)
	if err != nil {
		return nil, err
	}

	out := make(schema.Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	if !p.keepLat {
		delete(out, LatitudeField)
	}
	if !p.keepLon {
		delete(out, LongitudeField)
	}
	out[p.field] = encoded
	return out, nil
}

// ProjectAll projects every record in order, stopping at the first failure.
func (p *Projector) ProjectAll(recs []schema.Record) ([]schema.Record, error) {
	out := make([]schema.Record, 0, len(recs))
	for i, rec := range recs {
		projected, err := p.Project(rec)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: record %d", i)
		}
		out = append(out, projected)
	}
	return out, nil
}

// Encode builds a point in (lon, lat) order with SRID 4326 and returns it as
// hex-encoded little-endian EWKB.
func Encode(lon, lat float64) (string, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(schema.SRID)
	s, err := ewkbhex.Encode(pt, ewkb.NDR)
	if err != nil {
		return "", eris.Wrap(err, "geo: encode EWKB")
	}
	return s, nil
}

// Decode parses a value produced by Encode back into a point.
func Decode(s string) (*geom.Point, error) {
	g, err := ewkbhex.Decode(s)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geo: expected point, got %T", g)
	}
	return pt, nil
}

func coordinate(rec schema.Record, name string) (float64, error) {
	v, ok := rec[name]
	if !ok || v == nil {
		return 0, eris.Errorf("geo: missing %s", name)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: %s is not numeric", name)
	}
	return f, nil
}
