package workflow

// Status represents the editorial state of a piece of content
type Status string

const (
	StatusDraft     Status = "draft"
	StatusInReview  Status = "in_review"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Valid reports whether s is a recognized content status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusScheduled, StatusPublished:
		return true
	}
	return false
}

// Policy holds the per-site workflow configuration consulted by the engine
type Policy struct {
	// RequireReview mandates the InReview step before content may be
	// scheduled or published from Draft
	RequireReview bool `yaml:"require_review"`
}
