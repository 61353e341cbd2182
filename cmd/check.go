package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jobsieve/jobsieve/internal/job"
	"github.com/jobsieve/jobsieve/internal/logger"
	"github.com/jobsieve/jobsieve/internal/pipeline"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a single posting and print the full verdict",
	Run: func(cmd *cobra.Command, _ []string) {
		check(cmd)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("input", "i", "", "json file with the posting to evaluate (required)")

	if err := checkCmd.MarkFlagRequired("input"); err != nil {
		log.Fatalf("marking input flag required: %v", err)
	}
}

// check runs the pipeline for one posting and dumps the extended result,
// including the extracted skills and the match partition.
func check(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	config.applyDefaults()

	postings, err := job.LoadFromFile(cmd.Flag("input").Value.String())
	if err != nil {
		logger.Fatal("loading postings", zap.Error(err))
	}

	if len(postings) == 0 {
		logger.Fatal("input file contains no postings")
	}
	if len(postings) > 1 {
		logger.Warn("input file contains multiple postings, checking the first one only",
			zap.Int("count", len(postings)),
		)
	}

	st, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	executor := pipeline.NewExecutor(buildPipeline(ctx, config, st, logger), logger)

	result := executor.ProcessSingle(ctx, postings[0], config.pipelineOptions())

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("rendering the result", zap.Error(err))
	}

	fmt.Println(string(pretty))
}
