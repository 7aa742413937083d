package upstream

import (
	"errors"
	"time"
)

var (
	// ErrRejected marks a permanent upstream refusal. The same range must not be retried.
	ErrRejected = errors.New("upstream rejected request")
	// ErrRetrySmaller marks a failure correlated with the size of the requested range.
	ErrRetrySmaller = errors.New("upstream request failed, retry with a smaller range")
)

// Outcome is the result class of one upstream request.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeUnretryable
	OutcomeRetrySmaller
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetrySmaller:
		return "retry_smaller"
	default:
		return "unretryable"
	}
}

// Classify maps an error returned by FetchEvents to its Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrRetrySmaller):
		return OutcomeRetrySmaller
	default:
		return OutcomeUnretryable
	}
}

// calendarResponse models the body of GET /rooms/{id}/calendar.
type calendarResponse struct {
	Events []apiEvent `json:"events"`
}

type apiEvent struct {
	ID    int64     `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Title struct {
		DE string `json:"de"`
		EN string `json:"en"`
	} `json:"title"`
	Type         string `json:"type"`
	EntryType    string `json:"entry_type"`
	DetailedType string `json:"detailed_type"`
	Status       string `json:"status"`
}
