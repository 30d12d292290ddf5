package acled

import (
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

// BetweenMode is the fixed comparison mode for the event_date filter.
const BetweenMode = "BETWEEN"

// Request holds the query parameters of a single page request.
type Request struct {
	Key            string
	Email          string
	Page           int
	ISO            int
	EventDate      string
	EventDateWhere string
}

// Values encodes the request as URL query parameters.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("key", r.Key)
	v.Set("email", r.Email)
	v.Set("page", strconv.Itoa(r.Page))
	v.Set("iso", strconv.Itoa(r.ISO))
	v.Set("event_date", r.EventDate)
	v.Set("event_date_where", r.EventDateWhere)
	return v
}

// URL appends the request parameters to base, replacing any existing query.
func (r Request) URL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "acled: parse url %q", base)
	}
	u.RawQuery = r.Values().Encode()
	return u.String(), nil
}
