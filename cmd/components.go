package main

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/acled-ingest/internal/config"
	"github.com/sells-group/acled-ingest/internal/db"
	"github.com/sells-group/acled-ingest/internal/ingest"
	"github.com/sells-group/acled-ingest/internal/schema"
	"github.com/sells-group/acled-ingest/internal/store"
)

// runLogSource tags rows in the run log.
const runLogSource = "acled"

// loadTypes returns the configured type schema, or the built-in ACLED layout.
func loadTypes(c *config.Config) (*schema.TypeSchema, error) {
	if c.ACLED.SchemaFile == "" {
		return schema.ACLED(), nil
	}
	types, err := schema.LoadFile(c.ACLED.SchemaFile)
	if err != nil {
		return nil, eris.Wrap(err, "load type schema")
	}
	return types, nil
}

// buildStore creates the event store and, when enabled, the run log.
func buildStore(c *config.Config, types *schema.TypeSchema, dial db.Dialer) (*store.PostgresStore, *ingest.RunLog, error) {
	s, err := store.NewPostgres(c.Sink.Schema, c.Sink.Table, types, dial)
	if err != nil {
		return nil, nil, err
	}
	var runLog *ingest.RunLog
	if c.Sink.RunLog {
		runLog = ingest.NewRunLog(c.Sink.Schema, runLogSource, dial)
	}
	return s, runLog, nil
}

// parseCountries splits a comma-separated list of ISO3 codes.
func parseCountries(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
