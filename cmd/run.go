package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jobsieve/jobsieve/internal/ai"
	"github.com/jobsieve/jobsieve/internal/ai/gemini"
	"github.com/jobsieve/jobsieve/internal/dedup"
	"github.com/jobsieve/jobsieve/internal/job"
	"github.com/jobsieve/jobsieve/internal/logger"
	"github.com/jobsieve/jobsieve/internal/pipeline"
	"github.com/jobsieve/jobsieve/internal/secrets"
	"github.com/jobsieve/jobsieve/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultMinScore = 5
	defaultStore    = "jobsieve.db"
)

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate scraped job postings and store the relevant ones",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("input", "i", "", "json file with scraped job postings (required)")
	runCmd.Flags().BoolP("auto-aprove", "y", false, "do not ask for confirmation before processing")

	if err := runCmd.MarkFlagRequired("input"); err != nil {
		log.Fatalf("marking input flag required: %v", err)
	}
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobsieve", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	config.applyDefaults()

	postings, err := job.LoadFromFile(cmd.Flag("input").Value.String())
	if err != nil {
		logger.Fatal("loading postings", zap.Error(err))
	}

	if len(postings) == 0 {
		logger.Info("exiting", zap.String("reason", "no postings in input file"))
		return
	}

	logger.Info("loaded postings", zap.Int("count", len(postings)))

	st, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	if cmd.Flag("auto-aprove").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	executor := pipeline.NewExecutor(buildPipeline(ctx, config, st, logger), logger)

	results := executor.ProcessBatch(ctx, postings, config.pipelineOptions())

	if report, err := json.MarshalIndent(results, "", "  "); err == nil {
		logger.Debug(fmt.Sprintf("results: \n %s", report))
	}

	stored, err := st.CountJobs(ctx)
	if err != nil {
		logger.Warn("counting stored jobs", zap.Error(err))
	}

	summary := pipeline.Summarize(results)
	logger.Info("run complete",
		zap.Int("accepted", summary.Accepted),
		zap.Int("low_score", summary.LowScore),
		zap.Int("rejected", summary.Rejected),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors),
		zap.Int("jobs_in_store", stored),
	)
}

func (c *Config) applyDefaults() {
	if c.Store == "" {
		c.Store = defaultStore
	}
	if c.MinScore <= 0 {
		c.MinScore = defaultMinScore
	}
}

func (c *Config) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		MinScore:           c.MinScore,
		ChunkSize:          c.ChunkSize,
		HeuristicThreshold: c.HeuristicThreshold,
	}
}

func openStore(ctx context.Context, config *Config, logger *zap.Logger) (*store.Store, error) {
	st, err := store.Open(config.Store)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, err
	}

	count, err := st.CountJobs(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	logger.Info("store ready", zap.String("path", config.Store), zap.Int("jobs", count))
	return st, nil
}

// buildPipeline wires the stage implementations. A stage whose model cannot
// be configured is wired anyway and errors per posting, so the rest of the
// pipeline keeps working.
func buildPipeline(ctx context.Context, config *Config, st *store.Store, baseLogger *zap.Logger) *pipeline.Pipeline {
	maxLogLen := 0
	if config.Gemini != nil {
		maxLogLen = config.Gemini.MaxLogLength
	}

	stageGen := func(stage string) ai.Generator {
		gen, err := newStageGenerator(ctx, config.Gemini, stage, baseLogger)
		if err != nil {
			baseLogger.Warn("stage model unavailable, postings reaching it will fail",
				zap.String("stage", stage),
				zap.Error(err),
			)
			return nil
		}
		return gen
	}

	return pipeline.New(pipeline.Deps{
		Logger:    baseLogger,
		Detector:  dedup.NewDetector(st),
		Extractor: gemini.NewExtractor(stageGen(ai.StageSkillsExtraction), baseLogger, maxLogLen),
		Matcher:   gemini.NewMatcher(stageGen(ai.StageSkillsMatching), config.SkillsFile, baseLogger, maxLogLen),
		Scorer:    gemini.NewScorer(stageGen(ai.StageJobScoring), config.ResumeFile, baseLogger, maxLogLen),
		Sink:      st,
	})
}

func newStageGenerator(ctx context.Context, cfg *GeminiConfig, stage string, baseLogger *zap.Logger) (ai.Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gemini configuration is required")
	}

	stageCfg := cfg.Stages[stage]

	keyFile := ""
	if stageCfg != nil {
		keyFile = strings.TrimSpace(stageCfg.APIKeyFile)
	}
	if keyFile == "" {
		keyFile = strings.TrimSpace(cfg.APIKeyFile)
	}
	if keyFile == "" {
		keyFile = strings.TrimSpace(viper.GetString("gemini.api-key-file"))
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: stage + " api key",
		File: keyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genCfg := gemini.StageConfig{
		Stage:      stage,
		APIKey:     apiKey,
		BaseURL:    cfg.BaseURL,
		MaxRetries: cfg.MaxRetries,
	}
	if stageCfg != nil {
		genCfg.Model = stageCfg.Model
		genCfg.Temperature = stageCfg.Temperature
		genCfg.MaxTokens = stageCfg.MaxTokens
	}

	genLogger := logger.WithCommonFields(baseLogger.With(zap.String("stage", stage)), "gemini", genCfg.Model)

	gen, err := gemini.NewGenerator(ctx, genCfg, genLogger)
	if err != nil {
		return nil, err
	}

	return gen, nil
}
