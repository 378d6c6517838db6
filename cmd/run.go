package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"job-agent/internal/embedding"
	"job-agent/internal/embedding/gemini"
	"job-agent/internal/filtering"
	"job-agent/internal/governor"
	"job-agent/internal/job"
	"job-agent/internal/learning"
	"job-agent/internal/logger"
	"job-agent/internal/matching"
	"job-agent/internal/secrets"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes                 = "Yes"
	PromptNo                  = "No"
	PromptBack                = "back"
	PromptReportByCompany     = "Report by company"
	PromptManualApply         = "Apply to jobs in manual mode"
	PromptAppendToExcludeFile = "Append all jobs to exclude file"
	PromptJobsToFile          = "Dump scored jobs to file"

	learningFile     = "learning.json"
	applicationsFile = "applications.json"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo, PromptReportByCompany, PromptManualApply, PromptJobsToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score, rank and track applications for a batch of scraped jobs",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("do-not-exclude-applied", "f", false, "do not exclude jobs if already applied")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation if found suitable jobs")
	runCmd.Flags().Bool("dry-run", false, "rank and report only, never record applications")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
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

	logger.Info("starting the job-agent", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	if config.ResumeFile == "" {
		logger.Fatal("a parsed resume profile is required under resume-file to score jobs")
	}

	if config.JobsFile == "" {
		logger.Fatal("a scraped jobs dump is required under jobs-file to score jobs")
	}

	profile, err := job.ProfileFromFile(config.ResumeFile)
	if err != nil {
		logger.Fatal("loading resume profile", zap.Error(err))
	}

	jobs, err := job.FromFile(config.JobsFile)
	if err != nil {
		logger.Fatal("loading jobs", zap.Error(err))
	}

	logger.Info("loaded jobs", zap.Int("count", jobs.Len()))

	if jobs.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs found"))
		return
	}

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

	filters := prepareFilters(cmd, config, gov, logger)

	filtered, err := filters.RunFilters(ctx, jobs)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	jobs = filtered

	if jobs.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs left after filters"))
		return
	}

	embedder := buildEmbedder(ctx, config.Embedding, logger)
	matcher := matching.New(embedder, store, logger)

	minScore := viper.GetFloat64("match.min-score")

	ranked := matcher.Rank(ctx, jobs, profile)
	shortlist := matching.Filter(ranked, minScore)

	logger.Info("ranking done",
		zap.Int("ranked", len(ranked)),
		zap.Int("above_threshold", len(shortlist)),
		zap.Float64("min_score", minScore),
	)

	if len(shortlist) == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs above the score threshold"))
		return
	}

	dryRun := cmd.Flag("dry-run").Value.String() == "true"

	action := PromptYes
	auto := cmd.Flag("auto-approve").Value.String() == "true"
	for {
		var err error
		if !auto {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current shortlist", zap.Int("count", len(shortlist)))

		if err := handleAction(action, logger, shortlist, gov, dryRun); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if auto {
			return
		}
	}
}

func handleAction(action string, logger *zap.Logger, shortlist []*matching.ScoredJob, gov *governor.Governor, dryRun bool) error {
	switch action {
	case PromptYes:
		return recordAll(logger, shortlist, gov, dryRun)
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptManualApply:
		return manualApply(logger, shortlist, gov, dryRun)
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(shortlistJobs(shortlist).ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("jobs count", len(shortlist)))
		return nil
	case PromptJobsToFile:
		filename, err := dumpScored(shortlist)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// recordAll runs the whole shortlist through the rate governor. Policy
// rejections (daily ceiling, duplicate id) are reported and skipped, they
// are not errors.
func recordAll(logger *zap.Logger, shortlist []*matching.ScoredJob, gov *governor.Governor, dryRun bool) error {
	recorded := 0
	for _, sj := range shortlist {
		if dryRun {
			logger.Info("dry run: would apply",
				zap.String("job_id", sj.ID),
				zap.String("title", sj.Title),
				zap.Float64("match_score", sj.MatchScore),
			)
			continue
		}

		if !gov.CanApply(sj.ID) {
			logger.Info("skipping job rejected by rate governor",
				zap.String("job_id", sj.ID),
				zap.Int("remaining_today", gov.Remaining()),
			)
			continue
		}

		if gov.RecordApplication(sj.Job) {
			recorded++
		}
	}

	logger.Info("finished recording applications",
		zap.Int("recorded", recorded),
		zap.Int("remaining_today", gov.Remaining()),
	)
	return errExit
}

func manualApply(logger *zap.Logger, shortlist []*matching.ScoredJob, gov *governor.Governor, dryRun bool) error {
	for {
		items := make([]string, 0)

		for _, sj := range shortlist {
			label := fmt.Sprintf("%s %s / %s / %.2f / %s",
				sj.ID, sj.Title, sj.Company, sj.MatchScore, sj.URL,
			)

			items = append(items, label)
		}

		excludeFile := viper.GetString("exclude-file")
		if excludeFile != "" && len(shortlist) != 0 {
			items = append(items, PromptAppendToExcludeFile)
		}

		jobPrompt := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: append(items, PromptBack),
		}

		_, jobSelected, err := jobPrompt.Run()
		if err != nil {
			return err
		}

		switch jobSelected {
		case PromptBack:
			return nil
		case PromptAppendToExcludeFile:
			excluded, err := job.GetExcludedJobsFromFile(excludeFile)
			if err != nil {
				return err
			}

			excluded.Append(shortlistJobs(shortlist).ToExcluded())

			if err = excluded.ToFile(excludeFile); err != nil {
				return err
			}

			logger.Info("appended to exclude file", zap.String("filename", excludeFile))
			return nil
		default:
			jobID := strings.Split(jobSelected, " ")[0]

			var picked *matching.ScoredJob
			for _, sj := range shortlist {
				if sj.ID == jobID {
					picked = sj
					break
				}
			}
			if picked == nil {
				return fmt.Errorf("there is no such job id %s", jobID)
			}

			if dryRun {
				logger.Info("dry run: would apply", zap.String("job_id", picked.ID))
				continue
			}

			if !gov.RecordApplication(picked.Job) {
				logger.Info("application rejected by rate governor", zap.String("job_id", picked.ID))
			}
		}
	}
}

func shortlistJobs(shortlist []*matching.ScoredJob) *job.Jobs {
	jobs := &job.Jobs{}
	for _, sj := range shortlist {
		jobs.Items = append(jobs.Items, sj.Job)
	}
	return jobs
}

func dumpScored(shortlist []*matching.ScoredJob) (string, error) {
	jobs := shortlistJobs(shortlist)
	return jobs.DumpToTmpFile()
}

func prepareFilters(cmd *cobra.Command, config *Config, gov *governor.Governor, logger *zap.Logger) *filtering.Filtering {
	ignore := false
	if cmd != nil {
		flag := cmd.Flag("do-not-exclude-applied")
		if flag != nil && strings.EqualFold(flag.Value.String(), "true") {
			ignore = true
		}
	}

	var companies []string
	if config.Exclude != nil {
		companies = config.Exclude.Companies
	}

	steps := []filtering.Filter{
		filtering.NewAppliedHistory(
			&filtering.AppliedHistoryConfig{Ignore: ignore},
			&filtering.AppliedHistoryDeps{Governor: gov, Logger: logger},
		),
		filtering.NewExcludedCompanies(companies),
		filtering.NewExcludeFile(viper.GetString("exclude-file")),
	}

	return filtering.New(steps, logger)
}

// buildEmbedder constructs the configured embedding provider. A failing
// remote provider degrades to the local one with a warning: scoring must
// never be blocked by an unavailable API.
func buildEmbedder(ctx context.Context, cfg *EmbeddingConfig, log *zap.Logger) embedding.Embedder {
	dimension := 0
	provider := "local"
	if cfg != nil {
		dimension = cfg.Dimension
		provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	}

	if provider == "" || provider == "local" {
		return embedding.NewLocalEmbedder(dimension)
	}

	if provider != "gemini" {
		log.Warn("unsupported embedding provider, falling back to local", zap.String("provider", provider))
		return embedding.NewLocalEmbedder(dimension)
	}

	gcfg := cfg.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: gcfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		log.Warn("gemini api key is not available, falling back to local embedder", zap.Error(err))
		return embedding.NewLocalEmbedder(dimension)
	}

	embLogger := logger.WithEmbeddingFields(log, "gemini", gcfg.Model)

	embedder, err := gemini.NewEmbedder(ctx, apiKey, gcfg.Model, dimension, gcfg.MaxRetries, embLogger)
	if err != nil {
		log.Warn("building gemini embedder failed, falling back to local", zap.Error(err))
		return embedding.NewLocalEmbedder(dimension)
	}

	return embedder
}
