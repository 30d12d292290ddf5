package acled

import (
	"errors"
	"io"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/sells-group/acled-ingest/internal/schema"
)

// ErrMalformedResponse is returned when a page lacks count or data, or the
// API reports failure.
var ErrMalformedResponse = errors.New("acled: malformed response")

// page is the subset of the API response the source reads.
type page struct {
	Success *bool            `json:"success"`
	Count   *int             `json:"count"`
	Data    []map[string]any `json:"data"`
	Error   json.RawMessage  `json:"error"`
}

// decodePage reads one API page. Numbers are kept as json.Number so integer
// and coordinate values are not rounded through float64 before coercion.
func decodePage(r io.Reader) (int, []schema.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var p page
	if err := dec.Decode(&p); err != nil {
		return 0, nil, eris.Wrapf(ErrMalformedResponse, "acled: decode page: %v", err)
	}
	if p.Success != nil && !*p.Success {
		return 0, nil, eris.Wrapf(ErrMalformedResponse, "acled: api error: %s", string(p.Error))
	}
	if p.Count == nil {
		return 0, nil, eris.Wrap(ErrMalformedResponse, "acled: missing count")
	}
	if *p.Count == 0 {
		return 0, nil, nil
	}
	if p.Data == nil {
		return 0, nil, eris.Wrap(ErrMalformedResponse, "acled: missing data")
	}

	recs := make([]schema.Record, len(p.Data))
	for i, d := range p.Data {
		recs[i] = schema.Record(d)
	}
	return *p.Count, recs, nil
}
