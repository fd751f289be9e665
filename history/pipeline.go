package history

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunStats summarizes one pipeline run.
type RunStats struct {
	Total         int
	Processed     int
	Skipped       int
	Written       int
	Dropped       int
	WriteFailures int
	Elapsed       time.Duration
	// Average is the mean per-record processing time over processed records.
	Average time.Duration
}

// Pipeline chunks, analyzes, and consolidates records, then writes and counts the results.
type Pipeline struct {
	Analyzer     *ChunkAnalyzer
	Consolidator *Consolidator
	Sink         Sink
	Chunking     ChunkOptions
	// Concurrency is the number of records analyzed at once. Values <= 1 run sequentially.
	Concurrency int
	Logger      *zap.Logger
}

type recordOutcome struct {
	analysis RecordAnalysis
	skipped  bool
	elapsed  time.Duration
	err      error
}

// Run processes records in order. Results reach the sink and agg in input order and
// exactly once, whatever the concurrency. Only context errors are returned.
func (p *Pipeline) Run(ctx context.Context, records []HistoryRecord, agg *Aggregator) (RunStats, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if agg == nil {
		agg = NewAggregator()
	}
	start := time.Now()
	stats := RunStats{Total: len(records)}
	var busy time.Duration

	commit := func(i int, o recordOutcome) {
		rec := records[i]
		log := logger.With(zap.Int64("record_id", rec.ID), zap.Int("record", i+1), zap.Int("records", len(records)))
		if o.skipped {
			stats.Skipped++
			log.Warn("skipping record: no content")
			return
		}
		stats.Processed++
		busy += o.elapsed
		// Count what the file holds so a later extract reproduces the same totals.
		o.analysis = FileForm(o.analysis)
		if !o.analysis.Analyzed() {
			stats.Dropped++
			log.Warn("no analysis produced; record dropped")
			return
		}
		if p.Sink != nil {
			if err := p.Sink.Write(o.analysis); err != nil {
				stats.WriteFailures++
				log.Error("failed to write analysis", zap.Error(err))
				return
			}
		}
		stats.Written++
		agg.Add(o.analysis)
		log.Info("record analyzed", zap.Duration("elapsed", o.elapsed))
	}

	var runErr error
	if p.Concurrency <= 1 {
		for i, rec := range records {
			o := p.processRecord(ctx, rec, logger)
			if o.err != nil {
				runErr = o.err
				break
			}
			commit(i, o)
		}
	} else {
		runErr = p.runParallel(ctx, records, logger, commit)
	}

	stats.Elapsed = time.Since(start)
	if stats.Processed > 0 {
		stats.Average = busy / time.Duration(stats.Processed)
	}
	logger.Info("analysis summary",
		zap.Int("total", stats.Total),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("written", stats.Written),
		zap.Int("dropped", stats.Dropped),
		zap.Int("write_failures", stats.WriteFailures),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Duration("avg_per_record", stats.Average),
	)
	return stats, runErr
}

func (p *Pipeline) runParallel(ctx context.Context, records []HistoryRecord, logger *zap.Logger, commit func(int, recordOutcome)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Concurrency)

	results := make([]recordOutcome, len(records))
	ready := make([]chan struct{}, len(records))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	go func() {
		for i := range records {
			g.Go(func() error {
				defer close(ready[i])
				if err := gctx.Err(); err != nil {
					results[i] = recordOutcome{err: err}
					return err
				}
				results[i] = p.processRecord(gctx, records[i], logger)
				return results[i].err
			})
		}
	}()

	var firstErr error
	for i := range records {
		<-ready[i]
		if firstErr != nil {
			continue
		}
		if results[i].err != nil {
			firstErr = results[i].err
			continue
		}
		commit(i, results[i])
	}
	if err := g.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return firstErr
}

func (p *Pipeline) processRecord(ctx context.Context, rec HistoryRecord, logger *zap.Logger) recordOutcome {
	if rec.Content == "" {
		return recordOutcome{skipped: true}
	}
	start := time.Now()
	chunks := BuildChunks(rec, p.Chunking)
	if len(chunks) > 1 {
		logger.Info("content split into chunks",
			zap.Int64("record_id", rec.ID),
			zap.Int("runes", len([]rune(rec.Content))),
			zap.Int("chunks", len(chunks)))
	}

	res, err := p.Analyzer.Analyze(ctx, rec.Title, chunks)
	if err != nil {
		return recordOutcome{err: err}
	}
	analysis, err := p.Consolidator.Consolidate(ctx, rec, len(chunks), res)
	if err != nil {
		return recordOutcome{err: err}
	}
	return recordOutcome{analysis: analysis, elapsed: time.Since(start)}
}
