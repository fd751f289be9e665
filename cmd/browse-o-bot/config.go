package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/pflag"
	"github.com/theimaginaryfoundation/browse-o-bot/history"
	"github.com/theimaginaryfoundation/browse-o-bot/history/historydb"
	"github.com/theimaginaryfoundation/browse-o-bot/history/provider"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	providerOpenAI = "openai"
	providerGemini = "gemini"

	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-5-mini"
	defaultGeminiModel   = "gemini-2.5-flash"
)

const (
	stageAnalyze   = "analyze"
	stageExtract   = "extract"
	stageSummarize = "summarize"
)

var allStages = []string{stageAnalyze, stageExtract, stageSummarize}

type Config struct {
	DBPath   string `yaml:"db_path"`
	DBDriver string `yaml:"db_driver"`
	OutDir   string `yaml:"out_dir"`
	// Date selects the day folder for extract and summarize (YYYY-MM-DD, default today).
	Date string `yaml:"date"`

	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`

	Days  int    `yaml:"days"`
	Since string `yaml:"since"`

	MaxContentLength int `yaml:"max_content_length"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	Concurrency      int `yaml:"concurrency"`

	ChunkPrompt         string `yaml:"chunk_prompt"`
	ConsolidationPrompt string `yaml:"consolidation_prompt"`
	SummaryPrompt       string `yaml:"summary_prompt"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	FromStage string `yaml:"from_stage"`
	OnlyStage string `yaml:"only_stage"`
}

func defaultConfig() Config {
	return Config{
		DBPath:           "history.db",
		DBDriver:         historydb.DriverCGO,
		OutDir:           filepath.FromSlash("analysis_results"),
		Provider:         providerOpenAI,
		Timeout:          provider.DefaultTimeout,
		Days:             7,
		MaxContentLength: 4000,
		ChunkOverlap:     200,
		Concurrency:      1,
		LogLevel:         "info",
	}
}

func (c Config) Validate() error {
	if c.OutDir == "" {
		return errors.New("missing --out")
	}
	if c.DBDriver != historydb.DriverCGO && c.DBDriver != historydb.DriverPure {
		return fmt.Errorf("db-driver must be %s or %s", historydb.DriverCGO, historydb.DriverPure)
	}
	if c.Provider != providerOpenAI && c.Provider != providerGemini {
		return fmt.Errorf("provider must be %s or %s", providerOpenAI, providerGemini)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if c.Retries < 0 {
		return errors.New("retries must be >= 0")
	}
	if c.Since == "" && c.Days <= 0 {
		return errors.New("days must be > 0")
	}
	if err := (history.ChunkOptions{MaxLength: c.MaxContentLength, Overlap: c.ChunkOverlap}).Validate(); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be >= 1")
	}
	if c.Date != "" {
		if _, err := time.Parse(history.DateLayout, c.Date); err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	if c.FromStage != "" && c.OnlyStage != "" {
		return errors.New("--from-stage and --only-stage are mutually exclusive")
	}
	for _, s := range []string{c.FromStage, c.OnlyStage} {
		if s != "" && !slices.Contains(allStages, s) {
			return fmt.Errorf("unknown stage %q (want one of %v)", s, allStages)
		}
	}
	return nil
}

// bindFlags registers every config key as a persistent flag backed by cfg.
func bindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the browser history sqlite database")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "sqlite driver: sqlite3 (cgo) or sqlite (pure Go)")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory; artifacts go under <out>/<date>/")
	fs.StringVar(&cfg.Date, "date", cfg.Date, "Day folder for extract/summarize (YYYY-MM-DD, default today)")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Completion backend: openai (any OpenAI-compatible server) or gemini")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "OpenAI-compatible base URL (default OPENAI_BASE_URL or api.openai.com)")
	fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "API key (overrides OPENAI_API_KEY / GEMINI_API_KEY)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model name (default depends on provider)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-call timeout")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Retries for rate-limit and server errors (0 disables)")
	fs.IntVar(&cfg.Days, "days", cfg.Days, "Analyze history updated in the last N days")
	fs.StringVar(&cfg.Since, "since", cfg.Since, "Analyze history updated since this date (YYYY-MM-DD or RFC3339); overrides --days")
	fs.IntVar(&cfg.MaxContentLength, "max-content-length", cfg.MaxContentLength, "Max characters per chunk")
	fs.IntVar(&cfg.ChunkOverlap, "chunk-overlap", cfg.ChunkOverlap, "Characters shared by consecutive chunks")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Records analyzed at once")
	fs.StringVar(&cfg.ChunkPrompt, "chunk-prompt", cfg.ChunkPrompt, "Per-chunk prompt template file (default built-in)")
	fs.StringVar(&cfg.ConsolidationPrompt, "consolidation-prompt", cfg.ConsolidationPrompt, "Consolidation prompt template file (default built-in)")
	fs.StringVar(&cfg.SummaryPrompt, "summary-prompt", cfg.SummaryPrompt, "Browsing summary prompt template file (default built-in)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, or error")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write logs to this file")
}

// resolveConfig applies the optional config file under explicitly set flags, then env fallbacks.
func resolveConfig(fs *pflag.FlagSet, cfg *Config, configPath string, getenv func(string) string) error {
	if configPath != "" {
		changed := map[string]string{}
		fs.Visit(func(f *pflag.Flag) {
			changed[f.Name] = f.Value.String()
		})
		if err := loadConfigFile(configPath, cfg); err != nil {
			return err
		}
		for name, value := range changed {
			if err := fs.Set(name, value); err != nil {
				return fmt.Errorf("reapply --%s: %w", name, err)
			}
		}
	}
	applyEnv(cfg, getenv)
	cfg.OutDir = filepath.Clean(cfg.OutDir)
	return nil
}

func loadConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: config file %s", history.ErrInputNotFound, path)
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("%w: parse config %s: %v", history.ErrConfiguration, path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	switch cfg.Provider {
	case providerGemini:
		if cfg.APIKey == "" {
			cfg.APIKey = getenv("GEMINI_API_KEY")
		}
		if cfg.Model == "" {
			cfg.Model = defaultGeminiModel
		}
	default:
		if cfg.APIKey == "" {
			cfg.APIKey = getenv("OPENAI_API_KEY")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = getenv("OPENAI_BASE_URL")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOpenAIBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
	}
}

// selectStages returns the stages to run in order.
func selectStages(from, only string) []string {
	if only != "" {
		return []string{only}
	}
	if from == "" {
		return allStages
	}
	i := slices.Index(allStages, from)
	if i < 0 {
		return nil
	}
	return allStages[i:]
}
