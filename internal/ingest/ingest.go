// Package ingest wires a Source to a Sink and records each run.
package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acled-ingest/internal/schema"
)

// Sink persists record batches.
type Sink interface {
	// Init creates the destination if it does not exist. Safe to call repeatedly.
	Init(ctx context.Context) error
	// Save persists one batch.
	Save(ctx context.Context, records []schema.Record) error
}

// Source pulls records from upstream and hands every batch to a Sink.
type Source interface {
	FetchAndStore(ctx context.Context, sink Sink) error
}

// Result summarizes a pipeline run.
type Result struct {
	RunID    string        `json:"run_id,omitempty"`
	Batches  int64         `json:"batches"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// finishTimeout bounds recording the final run status.
const finishTimeout = 30 * time.Second

// Pipeline initializes the sink once and then drives the source into it.
type Pipeline struct {
	Source Source
	Sink   Sink
	// Log records the run when set.
	Log *RunLog
}

// Run executes the pipeline. The returned Result reflects the batches saved
// before any failure.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "ingest.pipeline"))
	start := time.Now()
	res := &Result{}

	if err := p.Sink.Init(ctx); err != nil {
		return res, eris.Wrap(err, "ingest: init sink")
	}

	if p.Log != nil {
		if err := p.Log.Init(ctx); err != nil {
			return res, err
		}
		id, err := p.Log.Start(ctx)
		if err != nil {
			return res, err
		}
		res.RunID = id
	}

	counter := &countingSink{Sink: p.Sink}
	runErr := p.Source.FetchAndStore(ctx, counter)

	res.Batches = counter.batches
	res.Rows = counter.rows
	res.Duration = time.Since(start)

	if p.Log != nil {
		// The run context may already be done (e.g. --timeout fired); the
		// final status is still written.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		var logErr error
		if runErr != nil {
			logErr = p.Log.Fail(finishCtx, res, runErr.Error())
		} else {
			logErr = p.Log.Complete(finishCtx, res)
		}
		cancel()
		if logErr != nil {
			log.Error("failed to record run", zap.String("run_id", res.RunID), zap.Error(logErr))
		}
	}

	if runErr != nil {
		return res, eris.Wrap(runErr, "ingest: fetch and store")
	}

	log.Info("run complete",
		zap.Int64("batches", res.Batches),
		zap.Int64("rows", res.Rows),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// countingSink tallies successful saves.
type countingSink struct {
	Sink
	batches int64
	rows    int64
}

func (c *countingSink) Save(ctx context.Context, records []schema.Record) error {
	if err := c.Sink.Save(ctx, records); err != nil {
		return err
	}
	if len(records) > 0 {
		c.batches++
		c.rows += int64(len(records))
	}
	return nil
}
