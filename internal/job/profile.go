package job

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ResumeProfile is the output of the external resume parser. Read-only to
// the scoring engine.
type ResumeProfile struct {
	RawText    string             `json:"raw_text"`
	Skills     []SkillRecord      `json:"skills,omitempty"`
	Experience []ExperienceRecord `json:"experience,omitempty"`
	Keywords   []string           `json:"keywords,omitempty"`
}

type SkillRecord struct {
	Name       string  `json:"skill"`
	Confidence float64 `json:"confidence,omitempty"`
}

type ExperienceRecord struct {
	Title   string `json:"title,omitempty"`
	Company string `json:"company,omitempty"`
	Period  string `json:"period,omitempty"`
}

// ProfileFromFile loads a parsed resume profile from the parser's JSON dump.
func ProfileFromFile(path string) (*ResumeProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profile ResumeProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decoding resume profile %q: %w", path, err)
	}

	return &profile, nil
}

// SkillSet returns the profile skills as a lowercase lookup set. A nil or
// empty skills list yields an empty set, never an error.
func (p *ResumeProfile) SkillSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Skills))
	for _, skill := range p.Skills {
		name := strings.ToLower(strings.TrimSpace(skill.Name))
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}
