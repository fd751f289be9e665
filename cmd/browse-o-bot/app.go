package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/theimaginaryfoundation/browse-o-bot/history"
	"github.com/theimaginaryfoundation/browse-o-bot/history/historydb"
	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"go.uber.org/zap"
)

type gatewayFactory func(ctx context.Context, cfg Config, logger *zap.Logger) (provider.Gateway, error)

type app struct {
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
	getenv     func(string) string
	newGateway gatewayFactory
}

func newApp() *app {
	return &app{
		cfg:        defaultConfig(),
		logger:     zap.NewNop(),
		now:        time.Now,
		getenv:     os.Getenv,
		newGateway: buildGateway,
	}
}

func buildGateway(ctx context.Context, cfg Config, logger *zap.Logger) (provider.Gateway, error) {
	var g provider.Gateway
	switch cfg.Provider {
	case providerGemini:
		gem, err := provider.NewGemini(ctx, provider.GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		g = gem
	default:
		oa, err := provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using chat completions endpoint", zap.String("endpoint", oa.ChatEndpoint()), zap.String("model", cfg.Model))
		g = oa
	}
	policy := provider.DefaultRetryPolicy(cfg.Retries)
	policy.Logger = logger
	return provider.WithRetry(g, policy), nil
}

// loadTemplate returns the built-in template when path is empty, otherwise the file, validated.
func loadTemplate(path string, builtin history.PromptTemplate, requireSchema bool, placeholders ...string) (history.PromptTemplate, error) {
	t := builtin
	if path != "" {
		var err error
		t, err = history.LoadPromptTemplate(path)
		if err != nil {
			return history.PromptTemplate{}, err
		}
	}
	if err := t.Validate(requireSchema, placeholders...); err != nil {
		return history.PromptTemplate{}, err
	}
	return t, nil
}

func (a *app) paths() history.RunPaths {
	if a.cfg.Date != "" {
		return history.PathsForDate(a.cfg.OutDir, a.cfg.Date)
	}
	return history.PathsFor(a.cfg.OutDir, a.now())
}

func (a *app) runAnalyze(ctx context.Context) error {
	chunkTmpl, err := loadTemplate(a.cfg.ChunkPrompt, history.DefaultChunkTemplate(), true,
		history.PlaceholderTitle, history.PlaceholderContent)
	if err != nil {
		return err
	}
	consTmpl, err := loadTemplate(a.cfg.ConsolidationPrompt, history.DefaultConsolidationTemplate(), true,
		history.PlaceholderCombinedDescriptions, history.PlaceholderCombinedCategories, history.PlaceholderCombinedTopics)
	if err != nil {
		return err
	}

	since, err := historydb.Since(a.now(), a.cfg.Since, a.cfg.Days)
	if err != nil {
		return err
	}
	store, err := historydb.Open(a.cfg.DBDriver, a.cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	gateway, err := a.newGateway(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}

	a.logger.Info("selecting records", zap.String("db", store.Path()), zap.String("since", since.Format(historydb.TimestampLayout)))
	records, err := store.Fetch(ctx, since)
	if err != nil {
		return err
	}
	a.logger.Info("records found", zap.Int("records", len(records)))

	paths := a.paths()
	w, err := history.CreateAnalysisWriter(paths.Analysis)
	if err != nil {
		return err
	}
	defer w.Close()

	agg := history.NewAggregator()
	p := &history.Pipeline{
		Analyzer:     history.NewChunkAnalyzer(gateway, chunkTmpl, a.logger),
		Consolidator: history.NewConsolidator(gateway, consTmpl, a.logger),
		Sink:         w,
		Chunking:     history.ChunkOptions{MaxLength: a.cfg.MaxContentLength, Overlap: a.cfg.ChunkOverlap},
		Concurrency:  a.cfg.Concurrency,
		Logger:       a.logger,
	}
	stats, err := p.Run(ctx, records, agg)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("analyze: close %s: %w", paths.Analysis, err)
	}
	if err := history.WriteCounts(paths.Counts, agg.Counts()); err != nil {
		return err
	}
	a.logger.Info("analysis results saved",
		zap.String("analysis", paths.Analysis),
		zap.String("counts", paths.Counts),
		zap.Int("written", stats.Written))
	return nil
}

func (a *app) runExtract(ctx context.Context) error {
	paths := a.paths()
	counts, err := history.ExtractCounts(paths.Analysis, paths.Counts)
	if err != nil {
		return err
	}
	a.logger.Info("extracted counts",
		zap.String("counts", paths.Counts),
		zap.Int("categories", len(counts.Categories)),
		zap.Int("topics", len(counts.Topics)))
	return nil
}

func (a *app) runSummarize(ctx context.Context) error {
	tmpl, err := loadTemplate(a.cfg.SummaryPrompt, history.DefaultSummaryTemplate(), false,
		history.PlaceholderTopCategories, history.PlaceholderTopTopics, history.PlaceholderSampleDescriptions)
	if err != nil {
		return err
	}
	paths := a.paths()
	records, err := history.ReadAnalysisFile(paths.Analysis)
	if err != nil {
		return err
	}
	counts, err := history.ReadCounts(paths.Counts)
	if err != nil {
		return err
	}
	gateway, err := a.newGateway(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	summary, err := history.NewBrowsingSummarizer(gateway, tmpl, a.logger).Summarize(ctx, counts, records)
	if err != nil {
		return err
	}
	if err := history.WriteSummary(paths.Summary, summary); err != nil {
		return err
	}
	a.logger.Info("browsing summary saved", zap.String("summary", paths.Summary))
	return nil
}

func (a *app) runStages(ctx context.Context, stages []string) error {
	if a.cfg.Date == "" {
		// Every stage must see the same day folder.
		a.cfg.Date = a.now().Format(history.DateLayout)
	}
	for _, s := range stages {
		a.logger.Info("stage starting", zap.String("stage", s))
		var err error
		switch s {
		case stageAnalyze:
			err = a.runAnalyze(ctx)
		case stageExtract:
			err = a.runExtract(ctx)
		case stageSummarize:
			err = a.runSummarize(ctx)
		default:
			err = fmt.Errorf("%w: unknown stage %q", history.ErrConfiguration, s)
		}
		if err != nil {
			return fmt.Errorf("stage %s: %w", s, err)
		}
	}
	return nil
}
