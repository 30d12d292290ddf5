// Package acled drives the ACLED read API page by page and hands each page of
// projected events to a sink.
package acled

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acled-ingest/internal/fetcher"
	"github.com/sells-group/acled-ingest/internal/geo"
	"github.com/sells-group/acled-ingest/internal/ingest"
	"github.com/sells-group/acled-ingest/internal/schema"
)

// Config configures a Source.
type Config struct {
	URL     string
	Email   string
	Key     string
	Regions []RegionCode
	Dates   DateRange
	Types   *schema.TypeSchema
}

// Source fetches every page for each configured region in order.
type Source struct {
	cfg       Config
	fetcher   fetcher.Fetcher
	projector *geo.Projector
}

var _ ingest.Source = (*Source)(nil)

// NewSource creates a Source. The type schema must declare exactly one Point field.
func NewSource(cfg Config, f fetcher.Fetcher) (*Source, error) {
	if cfg.URL == "" {
		return nil, eris.New("acled: url is required")
	}
	if f == nil {
		return nil, eris.New("acled: fetcher is required")
	}
	if cfg.Types == nil {
		cfg.Types = schema.ACLED()
	}
	p, err := geo.NewProjector(cfg.Types)
	if err != nil {
		return nil, eris.Wrap(err, "acled: source")
	}
	return &Source{cfg: cfg, fetcher: f, projector: p}, nil
}

// Regions returns the configured regions in fetch order.
func (s *Source) Regions() []RegionCode {
	out := make([]RegionCode, len(s.cfg.Regions))
	copy(out, s.cfg.Regions)
	return out
}

// FetchAndStore fetches all regions sequentially, saving each non-empty page
// before requesting the next one. The first error aborts the whole run.
func (s *Source) FetchAndStore(ctx context.Context, sink ingest.Sink) error {
	for _, r := range s.cfg.Regions {
		if err := s.fetchRegion(ctx, r, sink); err != nil {
			return eris.Wrapf(err, "acled: region %s (%d)", r.ISO3, r.Code)
		}
	}
	return nil
}

// BuildRequest returns the request for one page of region code iso.
func (s *Source) BuildRequest(iso, page int) Request {
	return Request{
		Key:            s.cfg.Key,
		Email:          s.cfg.Email,
		Page:           page,
		ISO:            iso,
		EventDate:      s.cfg.Dates.String(),
		EventDateWhere: BetweenMode,
	}
}

func (s *Source) fetchRegion(ctx context.Context, r RegionCode, sink ingest.Sink) error {
	log := zap.L().With(
		zap.String("component", "acled.source"),
		zap.String("iso3", r.ISO3),
		zap.Int("iso", r.Code),
	)

	var total int
	page := 1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		recs, err := s.fetchPage(ctx, r.Code, page)
		if err != nil {
			return eris.Wrapf(err, "acled: page %d", page)
		}
		if len(recs) == 0 {
			break
		}

		projected, err := s.projector.ProjectAll(recs)
		if err != nil {
			return eris.Wrapf(err, "acled: project page %d", page)
		}
		if err := sink.Save(ctx, projected); err != nil {
			return eris.Wrapf(err, "acled: save page %d", page)
		}

		total += len(projected)
		log.Debug("saved page", zap.Int("page", page), zap.Int("records", len(projected)))
		page++
	}

	log.Info("region complete", zap.Int("pages", page-1), zap.Int("records", total))
	return nil
}

// fetchPage returns the records of one page; an empty slice means the
// region is exhausted.
func (s *Source) fetchPage(ctx context.Context, iso, page int) ([]schema.Record, error) {
	u, err := s.BuildRequest(iso, page).URL(s.cfg.URL)
	if err != nil {
		return nil, err
	}

	body, err := s.fetcher.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "acled: fetch")
	}
	defer body.Close() //nolint:errcheck

	count, recs, err := decodePage(body)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return recs, nil
}
