package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobsieve"
)

type Config struct {
	// Store is the path to the sqlite database file.
	Store string `mapstructure:"store"`
	// SkillsFile lists the candidate's skills, one per line.
	SkillsFile string `mapstructure:"skills-file"`
	// ResumeFile holds the candidate's resume in plain text or markdown.
	ResumeFile string `mapstructure:"resume-file"`

	MinScore           int     `mapstructure:"min-score"`
	ChunkSize          int     `mapstructure:"chunk-size"`
	HeuristicThreshold float64 `mapstructure:"heuristic-threshold"`

	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	// APIKeyFile is the default credential for all stages; a stage can
	// override it with its own file.
	APIKeyFile   string `mapstructure:"api-key-file"`
	BaseURL      string `mapstructure:"base-url"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`

	// Stages configures the models per pipeline stage, keyed by
	// "skills_extraction", "skills_matching" and "job_scoring".
	Stages map[string]*StageModelConfig `mapstructure:"stages"`
}

type StageModelConfig struct {
	APIKeyFile  string  `mapstructure:"api-key-file"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max-tokens"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobsieve is a cli for triaging scraped job postings with llm-backed relevance filtering",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobsieve.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the commands that touch the store or the
	// models. If none of them was called, we can skip initialization.
	if runCmd.CalledAs() == "" && checkCmd.CalledAs() == "" && archiveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
