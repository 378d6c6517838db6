package matching

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"job-agent/internal/job"
	"job-agent/internal/learning"

	"go.uber.org/zap"
)

type stubEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if vector, ok := s.vectors[text]; ok {
		return vector, nil
	}
	return []float64{1, 0, 0}, nil
}

func (s *stubEmbedder) Dimension() int { return 3 }

func newTestStore(t *testing.T) *learning.Store {
	t.Helper()

	store := learning.New(filepath.Join(t.TempDir(), "learning.json"), zap.NewNop())
	if err := store.Load(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	return store
}

func TestScoreEmptyRequiredSkills(t *testing.T) {
	matcher := New(&stubEmbedder{}, newTestStore(t), zap.NewNop())

	profile := &job.ResumeProfile{
		RawText: "python developer",
		Skills:  []job.SkillRecord{{Name: "python"}},
	}

	// Identical stub vectors make similarity 1 and company preference is
	// the neutral prior, so the whole score is the non-skill terms.
	j := &job.Job{ID: "1", Title: "Engineer", Company: "Acme"}

	got, err := matcher.Score(context.Background(), j, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 0.4*1.0 + 0.4*0 + 0.2*learning.DefaultWeight
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected score %v, got %v", want, got)
	}
}

func TestScoreSkillSumIsUnnormalized(t *testing.T) {
	store := newTestStore(t)
	matcher := New(&stubEmbedder{}, store, zap.NewNop())

	profile := &job.ResumeProfile{
		RawText: "polyglot",
		Skills: []job.SkillRecord{
			{Name: "python"}, {Name: "sql"}, {Name: "go"}, {Name: "rust"},
		},
	}

	j := &job.Job{
		ID:             "1",
		Company:        "Acme",
		RequiredSkills: []string{"python", "sql", "go", "rust"},
	}

	got, err := matcher.Score(context.Background(), j, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Four matched skills at the neutral prior sum to 2.0; the final score
	// may exceed 1.0 and is surfaced as-is.
	want := 0.4*1.0 + 0.4*2.0 + 0.2*learning.DefaultWeight
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected score %v, got %v", want, got)
	}
	if got <= 1.0 {
		t.Fatalf("expected an unclamped score above 1.0, got %v", got)
	}
}

func TestScoreMissingResumeSkillsIsNotAnError(t *testing.T) {
	matcher := New(&stubEmbedder{}, newTestStore(t), zap.NewNop())

	profile := &job.ResumeProfile{RawText: "text only"}
	j := &job.Job{ID: "1", Company: "Acme", RequiredSkills: []string{"python"}}

	got, err := matcher.Score(context.Background(), j, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 0.4*1.0 + 0.2*learning.DefaultWeight
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected score %v, got %v", want, got)
	}
}

func TestScoreSkillMatchOrdering(t *testing.T) {
	matcher := New(&stubEmbedder{}, newTestStore(t), zap.NewNop())

	profile := &job.ResumeProfile{
		RawText: "data engineer",
		Skills:  []job.SkillRecord{{Name: "python"}, {Name: "sql"}},
	}

	jobA := &job.Job{ID: "a", Company: "Acme", RequiredSkills: []string{"python", "sql"}}
	jobB := &job.Job{ID: "b", Company: "Acme"}

	scoreA, err := matcher.Score(context.Background(), jobA, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	scoreB, err := matcher.Score(context.Background(), jobB, profile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both matched skills carry the neutral prior, so the skill term of
	// job A is exactly 1.0 while job B has none.
	if math.Abs((scoreA-scoreB)-0.4*1.0) > 1e-9 {
		t.Fatalf("expected job A to outscore job B by 0.4, got %v vs %v", scoreA, scoreB)
	}
}

func TestEmbeddingFailureDegradesToZeroSimilarity(t *testing.T) {
	matcher := New(&stubEmbedder{err: errors.New("api down")}, newTestStore(t), zap.NewNop())

	profile := &job.ResumeProfile{RawText: "text"}
	j := &job.Job{ID: "1", Company: "Acme"}

	got, err := matcher.Score(context.Background(), j, profile)
	if err != nil {
		t.Fatalf("expected degradation, got error: %v", err)
	}

	want := 0.2 * learning.DefaultWeight
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected score %v with degraded similarity, got %v", want, got)
	}
}

func TestRankIsStableForEqualScores(t *testing.T) {
	matcher := New(&stubEmbedder{}, newTestStore(t), zap.NewNop())

	profile := &job.ResumeProfile{RawText: "engineer"}
	jobs := &job.Jobs{
		Items: []*job.Job{
			{ID: "first", Company: "Acme"},
			{ID: "second", Company: "Acme"},
			{ID: "third", Company: "Acme"},
		},
	}

	ranked := matcher.Rank(context.Background(), jobs, profile)

	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked jobs, got %d", len(ranked))
	}

	for i, want := range []string{"first", "second", "third"} {
		if ranked[i].ID != want {
			t.Fatalf("expected %q at position %d, got %q", want, i, ranked[i].ID)
		}
	}
}

func TestRankSortsDescending(t *testing.T) {
	matcher := New(&stubEmbedder{}, newTestStore(t), zap.NewNop())

	profile := &job.ResumeProfile{
		RawText: "engineer",
		Skills:  []job.SkillRecord{{Name: "go"}},
	}
	jobs := &job.Jobs{
		Items: []*job.Job{
			{ID: "plain", Company: "Acme"},
			{ID: "skilled", Company: "Acme", RequiredSkills: []string{"go"}},
		},
	}

	ranked := matcher.Rank(context.Background(), jobs, profile)

	if ranked[0].ID != "skilled" {
		t.Fatalf("expected the skill-matching job first, got %q", ranked[0].ID)
	}

	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].MatchScore < ranked[i].MatchScore {
			t.Fatalf("ranking is not descending at position %d", i)
		}
	}
}

func TestFilterKeepsThresholdSubsequence(t *testing.T) {
	ranked := []*ScoredJob{
		{Job: &job.Job{ID: "a"}, MatchScore: 0.9},
		{Job: &job.Job{ID: "b"}, MatchScore: 0.6},
		{Job: &job.Job{ID: "c"}, MatchScore: 0.59},
		{Job: &job.Job{ID: "d"}, MatchScore: 0.1},
	}

	kept := Filter(ranked, DefaultMinScore)

	if len(kept) != 2 {
		t.Fatalf("expected 2 jobs above threshold, got %d", len(kept))
	}

	if kept[0].ID != "a" || kept[1].ID != "b" {
		t.Fatalf("expected subsequence [a b], got [%s %s]", kept[0].ID, kept[1].ID)
	}

	for _, sj := range kept {
		if sj.MatchScore < DefaultMinScore {
			t.Fatalf("job %q below threshold: %v", sj.ID, sj.MatchScore)
		}
	}
}
