package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"job-agent/internal/governor"
	"job-agent/internal/learning"
	"job-agent/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const topWeightsCount = 10

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print today's applications and a summary of the learning state",
	Run: func(_ *cobra.Command, _ []string) {
		report()
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func report() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
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

	today := gov.Today()
	pretty, _ := json.MarshalIndent(today, "", "  ")
	logger.Info("applications submitted today",
		zap.Int("count", len(today)),
		zap.Int("remaining_today", gov.Remaining()),
	)
	fmt.Println(string(pretty))

	successes, failures := 0, 0
	for _, outcome := range store.Outcomes() {
		if outcome.Success {
			successes++
		} else {
			failures++
		}
	}

	logger.Info("recorded outcomes",
		zap.Int("successful", successes),
		zap.Int("unsuccessful", failures),
	)

	weights := store.Snapshot()
	top := topSkills(weights, topWeightsCount)
	if len(top) > 0 {
		pretty, _ = json.MarshalIndent(top, "", "  ")
		logger.Info("strongest learned skills", zap.Int("count", len(top)))
		fmt.Println(string(pretty))
	}
}

type skillWeight struct {
	Skill  string  `json:"skill"`
	Weight float64 `json:"weight"`
}

func topSkills(weights *learning.Snapshot, limit int) []skillWeight {
	all := weights.Skills()

	skills := make([]skillWeight, 0, len(all))
	for skill, weight := range all {
		skills = append(skills, skillWeight{Skill: skill, Weight: weight})
	}

	sort.Slice(skills, func(i, k int) bool {
		if skills[i].Weight == skills[k].Weight {
			return skills[i].Skill < skills[k].Skill
		}
		return skills[i].Weight > skills[k].Weight
	})

	if len(skills) > limit {
		skills = skills[:limit]
	}
	return skills
}
