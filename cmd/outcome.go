package cmd

import (
	"log"
	"path/filepath"

	"job-agent/internal/governor"
	"job-agent/internal/job"
	"job-agent/internal/learning"
	"job-agent/internal/logger"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Record the result of a submitted application so the engine can learn from it",
	Run: func(cmd *cobra.Command, _ []string) {
		outcome(cmd)
	},
}

func init() {
	rootCmd.AddCommand(outcomeCmd)

	outcomeCmd.Flags().String("job", "", "job id the outcome belongs to")
	outcomeCmd.Flags().Bool("success", false, "the application was successful")
	outcomeCmd.Flags().Bool("failure", false, "the application was unsuccessful")

	outcomeCmd.MarkFlagRequired("job")
	outcomeCmd.MarkFlagsOneRequired("success", "failure")
	outcomeCmd.MarkFlagsMutuallyExclusive("success", "failure")
}

func outcome(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	jobID := cmd.Flag("job").Value.String()
	success := cmd.Flag("success").Value.String() == "true"

	dataDir := viper.GetString("data-dir")

	store := learning.New(filepath.Join(dataDir, learningFile), logger)
	if err := store.Load(); err != nil {
		logger.Fatal("loading learning state", zap.Error(err))
	}

	gov := governor.New(
		filepath.Join(dataDir, applicationsFile),
		viper.GetInt("limits.max-applications-per-day"),
		logger,
	)
	if err := gov.Load(); err != nil {
		logger.Fatal("loading application log", zap.Error(err))
	}

	target := findJob(jobID, config, gov)
	if target == nil {
		logger.Fatal("job id not found in jobs file or application log", zap.String("job_id", jobID))
	}

	if err := store.RecordOutcome(target, success); err != nil {
		logger.Fatal("recording outcome", zap.Error(err))
	}

	logger.Info("recorded application outcome",
		zap.String("job_id", target.ID),
		zap.String("company", target.Company),
		zap.Bool("success", success),
	)
}

// findJob resolves the job snapshot for an outcome. The jobs file carries
// required skills, so it is preferred; the application log is the fallback
// when the batch is long gone.
func findJob(jobID string, config *Config, gov *governor.Governor) *job.Job {
	if config != nil && config.JobsFile != "" {
		if jobs, err := job.FromFile(config.JobsFile); err == nil {
			if found := jobs.FindByID(jobID); found != nil {
				return found
			}
		}
	}

	if record := gov.Record(jobID); record != nil {
		return applicationToJob(record)
	}

	return nil
}

// applicationToJob rebuilds a job snapshot from an application record. Both
// sides share json tags, so the decoder maps the overlapping fields and
// skips log-only ones like status.
func applicationToJob(record *governor.ApplicationRecord) *job.Job {
	var j job.Job

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &j,
		TagName:  "json",
	}
	decoder, _ := mapstructure.NewDecoder(cfg)
	decoder.Decode(record)

	return &j
}
