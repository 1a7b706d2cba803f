package acquire

import "strings"

// Outcome is the classification of a failed download attempt.
type Outcome int

const (
	// Retryable failures move on to the next client profile.
	Retryable Outcome = iota
	// Fatal failures stop the acquisition: no other profile can fix them.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// credentialPhrases are lower-case fragments of the messages the source returns for expired or rotated session cookies.
var credentialPhrases = []string{
	"cookies are no longer valid",
	"likely been rotated",
	"cookies have expired",
	"cookies are expired",
	"session has expired",
}

// Classify maps an attempt error to an [Outcome]. A nil error is Retryable.
func Classify(err error) Outcome {
	if err == nil {
		return Retryable
	}
	return ClassifyText(err.Error())
}

// ClassifyText classifies raw upstream error text by case-insensitive phrase match.
func ClassifyText(text string) Outcome {
	lower := strings.ToLower(text)
	for _, phrase := range credentialPhrases {
		if strings.Contains(lower, phrase) {
			return Fatal
		}
	}
	return Retryable
}
