package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyTaxonomy is returned by the Extractor under EmptyTaxonomyReject
	// when the job description yields no skills at all.
	ErrEmptyTaxonomy = errors.New("no skills could be extracted from the job description")
	// ErrEmptySubmission wraps validation failures of submission inputs.
	ErrEmptySubmission = errors.New("incomplete submission")
	// ErrSuperseded is reported by a Session run that was abandoned or replaced by a newer submission.
	ErrSuperseded = errors.New("submission was superseded")
)

// SkillMatchCardinalityError reports a matcher response whose skills do not
// correspond one to one with the queried taxonomy. It always reaches callers
// wrapped in an *ai.MalformedResponseError that carries the raw payload.
type SkillMatchCardinalityError struct {
	Category   Category
	Expected   int
	Got        int
	Missing    []string
	Unexpected []string
}

func (e *SkillMatchCardinalityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s skills: expected %d entries, got %d", e.Category, e.Expected, e.Got)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %q", e.Missing)
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&b, "; unexpected %q", e.Unexpected)
	}
	return b.String()
}
