package analysis

import (
	"time"

	"github.com/google/uuid"
)

// Category tags a skill list.
type Category string

const (
	CategoryHard Category = "hard"
	CategorySoft Category = "soft"
)

// Submission is the input of one analysis run.
type Submission struct {
	ResumeText     string
	JobTitle       string
	JobDescription string
}

// SkillTaxonomy holds the skills a job description asks for, in extraction order.
type SkillTaxonomy struct {
	Hard []string `json:"hard_skills" mapstructure:"hard_skills"`
	Soft []string `json:"soft_skills" mapstructure:"soft_skills"`
}

// Len returns the number of skills across both categories.
func (t SkillTaxonomy) Len() int { return len(t.Hard) + len(t.Soft) }

// SkillPresence reports whether the resume demonstrates one skill.
type SkillPresence struct {
	Skill   string `json:"skill"`
	Present bool   `json:"present"`
}

// SkillMatch mirrors a SkillTaxonomy entry for entry, same order and names.
type SkillMatch struct {
	Hard []SkillPresence `json:"hard_skills"`
	Soft []SkillPresence `json:"soft_skills"`
}

// All returns hard entries followed by soft entries.
func (m SkillMatch) All() []SkillPresence {
	all := make([]SkillPresence, 0, len(m.Hard)+len(m.Soft))
	all = append(all, m.Hard...)
	return append(all, m.Soft...)
}

// PresentCount returns how many entries are present.
func (m SkillMatch) PresentCount() int {
	count := 0
	for _, entry := range m.All() {
		if entry.Present {
			count++
		}
	}
	return count
}

// Missing returns the names of absent skills per category.
func (m SkillMatch) Missing() (hard, soft []string) {
	for _, entry := range m.Hard {
		if !entry.Present {
			hard = append(hard, entry.Skill)
		}
	}
	for _, entry := range m.Soft {
		if !entry.Present {
			soft = append(soft, entry.Skill)
		}
	}
	return hard, soft
}

// Result is the outcome of one submission. It is built once by the Pipeline
// and must be treated as read-only afterwards.
type Result struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	JobTitle  string    `json:"job_title"`
	// Resume is the markdown-normalized resume.
	Resume string        `json:"resume"`
	Skills SkillTaxonomy `json:"skills"`
	Match  SkillMatch    `json:"match"`
	Score  int           `json:"score"`
	// Feedback is nil when the enrichment stage is disabled or failed.
	Feedback      *string `json:"feedback"`
	FeedbackError string  `json:"feedback_error,omitempty"`
}
