package job

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	JobIDField      = "ID"
	JobCompanyField = "Company"
)

// Jobs is a batch of scraped jobs in original scrape order.
type Jobs struct {
	Items []*Job
}

// Job is a single scraped posting. It is immutable once loaded: every
// component reads it, nobody mutates it.
type Job struct {
	ID             string   `json:"id"`
	Title          string   `json:"title,omitempty"`
	Company        string   `json:"company,omitempty"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description,omitempty"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	URL            string   `json:"url,omitempty"`
}

// FromFile loads a batch of jobs dumped by an external scraper.
func FromFile(path string) (*Jobs, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &Jobs{}, nil
	}

	var items []*Job
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding jobs file %q: %w", path, err)
	}

	return &Jobs{Items: items}, nil
}

func (j *Jobs) Len() int {
	return len(j.Items)
}

func (j *Jobs) FindByID(id string) *Job {
	for _, item := range j.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (j *Jobs) IDs() []string {
	ids := make([]string, 0, len(j.Items))
	for _, item := range j.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (jb *Job) GetStringField(name string) string {
	switch name {
	case JobIDField:
		return jb.ID
	case JobCompanyField:
		return jb.Company
	default:
		return ""
	}
}

// Exclude removes jobs whose named field matches any of the targets and
// returns the IDs of removed jobs. Scrape order of the remaining jobs is
// preserved.
func (j *Jobs) Exclude(name string, targets []string) []string {
	wanted := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		wanted[target] = struct{}{}
	}

	var excluded []string
	kept := j.Items[:0]
	for _, item := range j.Items {
		if _, ok := wanted[item.GetStringField(name)]; ok {
			excluded = append(excluded, item.ID)
			continue
		}
		kept = append(kept, item)
	}
	j.Items = kept

	return excluded
}

// ReportByCompany groups jobs per company for human-readable summaries.
func (j *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range j.Items {
		report[item.Company] = append(report[item.Company], map[string]string{
			"title":    item.Title,
			"location": item.Location,
			"url":      item.URL,
		})
	}
	return report
}

func (j *Jobs) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}
