package matching

import (
	"context"
	"fmt"
	"sort"

	"job-agent/internal/embedding"
	"job-agent/internal/job"
	"job-agent/internal/learning"

	"go.uber.org/zap"
)

// Score term weights. The skill term is an unnormalized sum over matched
// required skills, so the final score can exceed 1.0 on skill-heavy postings.
// Skill-heavy matches are meant to outrank few-skill ones, so it stays
// unclamped.
const (
	similarityWeight = 0.4
	skillWeight      = 0.4
	companyWeight    = 0.2
)

// DefaultMinScore is the ranking threshold used by every call site unless
// overridden by configuration.
const DefaultMinScore = 0.6

// ScoredJob is a job with its computed match score.
type ScoredJob struct {
	*job.Job
	MatchScore float64 `json:"match_score"`
}

// Matcher computes match scores for job/resume pairs. It only ever reads
// the learning store: weight updates belong to the feedback loop.
type Matcher struct {
	embedder embedding.Embedder
	store    *learning.Store
	logger   *zap.Logger
}

func New(embedder embedding.Embedder, store *learning.Store, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Score computes the match score for a single job against the profile:
// 0.4*similarity + 0.4*skill sum + 0.2*company preference.
func (m *Matcher) Score(ctx context.Context, j *job.Job, profile *job.ResumeProfile) (float64, error) {
	if j == nil {
		return 0, fmt.Errorf("job is required")
	}
	if profile == nil {
		return 0, fmt.Errorf("resume profile is required")
	}

	return m.score(ctx, j, profile, m.store.Snapshot()), nil
}

func (m *Matcher) score(ctx context.Context, j *job.Job, profile *job.ResumeProfile, weights *learning.Snapshot) float64 {
	similarity := m.similarity(ctx, j, profile)

	skillSum := 0.0
	skillSet := profile.SkillSet()
	for _, skill := range j.RequiredSkills {
		if _, ok := skillSet[learning.Key(skill)]; ok {
			skillSum += weights.SkillWeight(skill)
		}
	}

	companyScore := weights.CompanyPreference(j.Company)

	return similarityWeight*similarity + skillWeight*skillSum + companyWeight*companyScore
}

// similarity embeds the job text and the resume text and returns their
// cosine similarity. Embedding failures degrade to 0 with a warning so a
// single bad job never aborts a batch.
func (m *Matcher) similarity(ctx context.Context, j *job.Job, profile *job.ResumeProfile) float64 {
	jobVector, err := m.embedder.Embed(ctx, j.Title+" "+j.Description)
	if err != nil {
		m.logger.Warn("embedding job failed, similarity degraded to 0",
			zap.String("job_id", j.ID),
			zap.Error(err),
		)
		return 0
	}

	resumeVector, err := m.embedder.Embed(ctx, profile.RawText)
	if err != nil {
		m.logger.Warn("embedding resume failed, similarity degraded to 0",
			zap.String("job_id", j.ID),
			zap.Error(err),
		)
		return 0
	}

	return embedding.Cosine(jobVector, resumeVector)
}

// Rank scores the batch against the profile and returns it sorted by match
// score, descending. Ties keep the original scrape order. Weights are frozen
// once for the whole batch.
func (m *Matcher) Rank(ctx context.Context, jobs *job.Jobs, profile *job.ResumeProfile) []*ScoredJob {
	weights := m.store.Snapshot()

	scored := make([]*ScoredJob, 0, jobs.Len())
	for _, j := range jobs.Items {
		scored = append(scored, &ScoredJob{
			Job:        j,
			MatchScore: m.score(ctx, j, profile, weights),
		})
	}

	sort.SliceStable(scored, func(i, k int) bool {
		return scored[i].MatchScore > scored[k].MatchScore
	})

	return scored
}

// Filter keeps the jobs scoring at or above minScore, preserving rank order.
func Filter(ranked []*ScoredJob, minScore float64) []*ScoredJob {
	kept := make([]*ScoredJob, 0, len(ranked))
	for _, sj := range ranked {
		if sj.MatchScore >= minScore {
			kept = append(kept, sj)
		}
	}
	return kept
}
