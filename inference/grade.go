package inference

import (
	"strings"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Severity is the display tone of a grade.
type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityWarning
	SeverityDanger
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityDanger:
		return "danger"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	for _, c := range []Severity{SeveritySuccess, SeverityWarning, SeverityDanger} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return errors.NewValidationError("severity", "unknown severity", string(text))
}

// Grade thresholds on the predicted quality score.
const (
	EliteThreshold   = 7.0
	VintageThreshold = 5.0
)

// Grade is the qualitative band of a predicted score.
type Grade struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
	Icon     string   `json:"icon"`
}

var (
	GradeElite   = Grade{Label: "Elite Reserve", Severity: SeveritySuccess, Icon: "🏆"}
	GradeVintage = Grade{Label: "Vintage Standard", Severity: SeverityWarning, Icon: "🍷"}
	GradeEntry   = Grade{Label: "Entry Blend", Severity: SeverityDanger, Icon: "🍂"}
)

// Classify maps a score to its grade: 7 and above is Elite Reserve, from 5 up
// to 7 is Vintage Standard, anything lower is Entry Blend.
func Classify(score float64) Grade {
	switch {
	case score >= EliteThreshold:
		return GradeElite
	case score >= VintageThreshold:
		return GradeVintage
	default:
		return GradeEntry
	}
}

// String returns the icon followed by the label.
func (g Grade) String() string {
	return g.Icon + " " + g.Label
}

// Summary is the sentence shown under a prediction.
func (g Grade) Summary() string {
	return "Based on the physiochemical composition, this wine exhibits characteristics aligning with " +
		strings.ToLower(g.String()) + " standards."
}
