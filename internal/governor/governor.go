// Package governor enforces the application-rate policy: a daily ceiling and
// a duplicate check over the durable application log. Breaches are normal
// outcomes reported as booleans, never errors.
package governor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"job-agent/internal/job"

	"go.uber.org/zap"
)

// DefaultMaxPerDay is the application ceiling unless configured otherwise.
const DefaultMaxPerDay = 10

const statusApplied = "applied"

// ApplicationRecord is one submitted application. Records are append-only
// and never mutated.
type ApplicationRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Company   string    `json:"company,omitempty"`
	Location  string    `json:"location,omitempty"`
	URL       string    `json:"url,omitempty"`
	AppliedAt time.Time `json:"date"`
	Status    string    `json:"status"`
}

// Governor tracks applications and gates new ones. "Today" is recomputed
// from the wall clock on every call, so the daily counter resets implicitly
// at midnight without any state transition.
type Governor struct {
	mu      sync.Mutex
	path    string
	ceiling int
	logger  *zap.Logger
	records []*ApplicationRecord

	// now is swappable in tests to cross day boundaries.
	now func() time.Time
}

func New(path string, ceiling int, logger *zap.Logger) *Governor {
	if ceiling <= 0 {
		ceiling = DefaultMaxPerDay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Governor{
		path:    path,
		ceiling: ceiling,
		logger:  logger,
		now:     time.Now,
	}
}

// Load reads the application log. Absence means first run; a corrupt log is
// degraded to empty with a warning rather than blocking the workflow.
func (g *Governor) Load() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			g.records = nil
			return nil
		}
		g.logger.Warn("application log is unreadable, starting empty",
			zap.String("path", g.path),
			zap.Error(err),
		)
		g.records = nil
		return nil
	}

	var records []*ApplicationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		g.logger.Warn("application log is corrupt, starting empty",
			zap.String("path", g.path),
			zap.Error(err),
		)
		g.records = nil
		return nil
	}

	g.records = records
	return nil
}

// CanApply reports whether an application for the given job would be
// accepted right now: the id must not exist anywhere in the log and today's
// count must be under the ceiling.
func (g *Governor) CanApply(jobID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return !g.seen(jobID) && g.todayCount() < g.ceiling
}

// RecordApplication appends the job to the log and persists it. It returns
// false and takes no effect when the job id was ever recorded before or the
// daily ceiling is already reached.
func (g *Governor) RecordApplication(j *job.Job) bool {
	if j == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen(j.ID) {
		g.logger.Warn("job was already applied to", zap.String("job_id", j.ID))
		return false
	}

	if g.todayCount() >= g.ceiling {
		g.logger.Warn("daily application limit reached", zap.Int("limit", g.ceiling))
		return false
	}

	record := &ApplicationRecord{
		ID:        j.ID,
		Title:     j.Title,
		Company:   j.Company,
		Location:  j.Location,
		URL:       j.URL,
		AppliedAt: g.now(),
		Status:    statusApplied,
	}
	g.records = append(g.records, record)

	if err := g.save(); err != nil {
		// Roll the in-memory append back so the next attempt is not
		// silently deduplicated against a record that was never stored.
		g.records = g.records[:len(g.records)-1]
		g.logger.Warn("persisting application record failed", zap.String("job_id", j.ID), zap.Error(err))
		return false
	}

	g.logger.Info("tracked application",
		zap.String("job_id", j.ID),
		zap.String("title", j.Title),
		zap.String("company", j.Company),
	)
	return true
}

// Record returns the application record for a job id, any day, or nil.
func (g *Governor) Record(jobID string) *ApplicationRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, record := range g.records {
		if record.ID == jobID {
			return record
		}
	}
	return nil
}

// AppliedIDs returns every job id in the log, any day.
func (g *Governor) AppliedIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.records))
	for _, record := range g.records {
		ids = append(ids, record.ID)
	}
	return ids
}

// Today returns the applications recorded on the current calendar day.
func (g *Governor) Today() []*ApplicationRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	today := g.now()
	var records []*ApplicationRecord
	for _, record := range g.records {
		if sameDay(record.AppliedAt, today) {
			records = append(records, record)
		}
	}
	return records
}

// Remaining returns how many applications are still allowed today.
func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	left := g.ceiling - g.todayCount()
	if left < 0 {
		return 0
	}
	return left
}

func (g *Governor) seen(jobID string) bool {
	for _, record := range g.records {
		if record.ID == jobID {
			return true
		}
	}
	return false
}

func (g *Governor) todayCount() int {
	today := g.now()
	count := 0
	for _, record := range g.records {
		if sameDay(record.AppliedAt, today) {
			count++
		}
	}
	return count
}

func (g *Governor) save() error {
	data, err := json.MarshalIndent(g.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal application log: %w", err)
	}

	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".applications_*.json")
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

	return os.Rename(tmp.Name(), g.path)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
