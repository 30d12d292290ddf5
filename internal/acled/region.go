package acled

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateFormat is the calendar date layout used by the API and configuration.
const DateFormat = "2006-01-02"

// RegionCode selects one country's events.
type RegionCode struct {
	ISO3 string `yaml:"iso3" mapstructure:"iso3"`
	Code int    `yaml:"code" mapstructure:"code"`
}

// FilterRegions returns the regions whose ISO3 code is in iso3, keeping the
// configured order. An empty filter returns regions unchanged.
func FilterRegions(regions []RegionCode, iso3 []string) ([]RegionCode, error) {
	if len(iso3) == 0 {
		return regions, nil
	}
	want := make(map[string]bool, len(iso3))
	for _, c := range iso3 {
		want[strings.ToUpper(strings.TrimSpace(c))] = true
	}

	var out []RegionCode
	for _, r := range regions {
		if want[strings.ToUpper(r.ISO3)] {
			out = append(out, r)
			delete(want, strings.ToUpper(r.ISO3))
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for c := range want {
			unknown = append(unknown, c)
		}
		return nil, eris.Errorf("acled: unknown region codes: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange validates that end is not before start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if end.Before(start) {
		return DateRange{}, eris.Errorf("acled: end date %s is before start date %s",
			end.Format(DateFormat), start.Format(DateFormat))
	}
	return DateRange{Start: start, End: end}, nil
}

// ParseDateRange parses YYYY-MM-DD dates. An empty end defaults to today.
func ParseDateRange(start, end string, now time.Time) (DateRange, error) {
	s, err := time.Parse(DateFormat, start)
	if err != nil {
		return DateRange{}, eris.Wrapf(err, "acled: parse start date %q", start)
	}
	e := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if end != "" {
		e, err = time.Parse(DateFormat, end)
		if err != nil {
			return DateRange{}, eris.Wrapf(err, "acled: parse end date %q", end)
		}
	}
	return NewDateRange(s, e)
}

// String renders the range in the API's "start|end" form.
func (r DateRange) String() string {
	return r.Start.Format(DateFormat) + "|" + r.End.Format(DateFormat)
}
