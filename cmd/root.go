package cmd

import (
	"errors"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "job-agent"
)

type Config struct {
	ResumeFile  string           `mapstructure:"resume-file"`
	JobsFile    string           `mapstructure:"jobs-file"`
	DataDir     string           `mapstructure:"data-dir"`
	ExcludeFile string           `mapstructure:"exclude-file"`
	Match       *MatchConfig     `mapstructure:"match"`
	Limits      *LimitsConfig    `mapstructure:"limits"`
	Embedding   *EmbeddingConfig `mapstructure:"embedding"`
	Exclude     *struct {
		Companies []string
	}
}

type MatchConfig struct {
	MinScore float64 `mapstructure:"min-score"`
}

type LimitsConfig struct {
	MaxApplicationsPerDay int `mapstructure:"max-applications-per-day"`
}

type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"`
	Dimension int           `mapstructure:"dimension"`
	Gemini    *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-agent scores scraped jobs against a resume, learns from outcomes and tracks applications",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("match.min-score", "MIN_MATCH_SCORE"); err != nil {
		log.Fatalf("binding MIN_MATCH_SCORE environment variable: %v", err)
	}
	if err := viper.BindEnv("limits.max-applications-per-day", "MAX_APPLICATIONS_PER_DAY"); err != nil {
		log.Fatalf("binding MAX_APPLICATIONS_PER_DAY environment variable: %v", err)
	}
	if err := viper.BindEnv("data-dir", "JOB_AGENT_DATA_DIR"); err != nil {
		log.Fatalf("binding JOB_AGENT_DATA_DIR environment variable: %v", err)
	}
	if err := viper.BindEnv("embedding.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	viper.SetDefault("data-dir", "data")
	viper.SetDefault("match.min-score", 0.6)
	viper.SetDefault("limits.max-applications-per-day", 10)
	viper.SetDefault("embedding.provider", "local")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-agent.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Secrets and local overrides may live in a .env file.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config is fine: report and outcome work from
		// the data dir alone. An explicitly requested or broken config is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
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
