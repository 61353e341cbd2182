package cmd

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/jobsieve/jobsieve/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <job-url>",
	Short: "Archive a stored posting so it no longer appears in counts",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		archive(args[0])
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}

func archive(url string) {
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

	st, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	if err := st.ArchiveJob(ctx, url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Fatal("no stored posting with that url", zap.String("job_url", url))
		}
		logger.Fatal("archiving the posting", zap.Error(err))
	}

	logger.Info("posting archived", zap.String("job_url", url))
}
