package learning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"job-agent/internal/job"

	"go.uber.org/zap"
)

const (
	// DefaultWeight is the neutral prior for skills and companies never
	// seen before.
	DefaultWeight = 0.5
	// DefaultDelta is the per-outcome weight step.
	DefaultDelta = 0.1
)

// State is the durable learning snapshot. It is the only mutable shared
// entity of the engine and is always persisted as a whole.
type State struct {
	SkillWeights       map[string]float64 `json:"skill_weights"`
	CompanyPreferences map[string]float64 `json:"company_preferences"`
	Applications       []*OutcomeRecord   `json:"applications"`
}

// OutcomeRecord captures the result of one past application.
type OutcomeRecord struct {
	Job       *job.Job  `json:"job"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

func newState() *State {
	return &State{
		SkillWeights:       make(map[string]float64),
		CompanyPreferences: make(map[string]float64),
	}
}

// Store owns the learning state and its persistence. Every mutation is
// serialized by the mutex and flushed synchronously, so a crash never loses
// more than the in-flight update and concurrent readers of the file never
// observe a partial write.
type Store struct {
	mu     sync.Mutex
	path   string
	delta  float64
	logger *zap.Logger
	state  *State
}

func New(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		delta:  DefaultDelta,
		logger: logger,
		state:  newState(),
	}
}

// WithDelta overrides the per-outcome weight step. Non-positive values are
// ignored.
func (s *Store) WithDelta(delta float64) *Store {
	if delta > 0 {
		s.delta = delta
	}
	return s
}

// Load reads the durable snapshot. A missing file means first run and a
// corrupt one is not fatal: both fall back to empty defaults, the latter
// with a warning.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = newState()
			return nil
		}
		s.logger.Warn("learning state is unreadable, starting from defaults",
			zap.String("path", s.path),
			zap.Error(err),
		)
		s.state = newState()
		return nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("learning state is corrupt, starting from defaults",
			zap.String("path", s.path),
			zap.Error(err),
		)
		s.state = newState()
		return nil
	}

	if state.SkillWeights == nil {
		state.SkillWeights = make(map[string]float64)
	}
	if state.CompanyPreferences == nil {
		state.CompanyPreferences = make(map[string]float64)
	}
	s.state = &state

	return nil
}

// save writes the full snapshot with a replace-on-write so readers never see
// a partially written file. Callers must hold the mutex.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal learning state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".learning_*.json")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), s.path)
}

// SkillWeight returns the learned weight for a skill, seeding and persisting
// the neutral prior on first access.
func (s *Store) SkillWeight(skill string) float64 {
	return s.weight(s.state.SkillWeights, Key(skill))
}

// CompanyPreference returns the learned preference for a company, seeding and
// persisting the neutral prior on first access.
func (s *Store) CompanyPreference(company string) float64 {
	return s.weight(s.state.CompanyPreferences, company)
}

func (s *Store) weight(weights map[string]float64, key string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := weights[key]; ok {
		return w
	}

	weights[key] = DefaultWeight
	if err := s.save(); err != nil {
		s.logger.Warn("persisting default weight failed", zap.String("key", key), zap.Error(err))
	}

	return DefaultWeight
}

// AdjustSkill moves a skill weight by +delta on success and -delta on failure,
// clamped to [0, 1], and persists the snapshot.
func (s *Store) AdjustSkill(skill string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adjust(s.state.SkillWeights, Key(skill), success)
	return s.save()
}

// AdjustCompany is AdjustSkill for company preferences.
func (s *Store) AdjustCompany(company string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adjust(s.state.CompanyPreferences, company, success)
	return s.save()
}

func (s *Store) adjust(weights map[string]float64, key string, success bool) {
	w, ok := weights[key]
	if !ok {
		w = DefaultWeight
	}

	if success {
		w += s.delta
	} else {
		w -= s.delta
	}

	weights[key] = clamp(w)
}

// RecordOutcome is the feedback loop: it appends the outcome to the
// application log, adjusts every required skill and the company preference,
// and persists everything as one snapshot. A crash either keeps the whole
// outcome or none of it, so no replay step is needed on restart.
func (s *Store) RecordOutcome(j *job.Job, success bool) error {
	if j == nil {
		return fmt.Errorf("job is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Applications = append(s.state.Applications, &OutcomeRecord{
		Job:       j,
		Success:   success,
		Timestamp: time.Now().UTC(),
	})

	for _, skill := range j.RequiredSkills {
		s.adjust(s.state.SkillWeights, Key(skill), success)
	}
	s.adjust(s.state.CompanyPreferences, j.Company, success)

	return s.save()
}

// Outcomes returns a copy of the recorded application outcomes.
func (s *Store) Outcomes() []*OutcomeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]*OutcomeRecord, len(s.state.Applications))
	copy(outcomes, s.state.Applications)
	return outcomes
}

// Snapshot returns a frozen view of the weights for scoring a batch. Lookups
// against the snapshot return the neutral prior for unseen keys without
// touching the store, so ranking never interleaves with mutation.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		skills:    make(map[string]float64, len(s.state.SkillWeights)),
		companies: make(map[string]float64, len(s.state.CompanyPreferences)),
	}
	for k, v := range s.state.SkillWeights {
		snap.skills[k] = v
	}
	for k, v := range s.state.CompanyPreferences {
		snap.companies[k] = v
	}
	return snap
}

// Snapshot is a read-only view of learned weights frozen at call time.
type Snapshot struct {
	skills    map[string]float64
	companies map[string]float64
}

func (sn *Snapshot) SkillWeight(skill string) float64 {
	if w, ok := sn.skills[Key(skill)]; ok {
		return w
	}
	return DefaultWeight
}

// Skills returns a copy of every learned skill weight in the snapshot.
func (sn *Snapshot) Skills() map[string]float64 {
	skills := make(map[string]float64, len(sn.skills))
	for k, v := range sn.skills {
		skills[k] = v
	}
	return skills
}

func (sn *Snapshot) CompanyPreference(company string) float64 {
	if w, ok := sn.companies[company]; ok {
		return w
	}
	return DefaultWeight
}

// Key normalizes a skill name for weight lookups. Companies are matched
// verbatim; skills are matched case-insensitively.
func Key(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func clamp(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
