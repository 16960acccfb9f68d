package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOracleUnavailable reports that the external proposer failed or timed out.
	ErrOracleUnavailable = errors.New("generation oracle unavailable")
	// ErrTruncated reports that the search budget ran out before a full assignment was found.
	ErrTruncated = errors.New("search truncated by budget")
)

// ModelBuildError is returned when the snapshot or grid cannot form a CSP instance.
// It is fatal to the run: no schedule is produced.
type ModelBuildError struct {
	Problems []string
}

func (e *ModelBuildError) Error() string {
	if len(e.Problems) == 1 {
		return "model build failed: " + e.Problems[0]
	}
	return fmt.Sprintf("model build failed (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ModelBuildError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ModelBuildError) empty() bool {
	return len(e.Problems) == 0
}

// UnsatisfiableError carries the minimal conflicting subject set identified by propagation.
type UnsatisfiableError struct {
	Subjects []string `json:"subjects"`
	Reason   string   `json:"reason"`
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("no valid assignment exists: %s (subjects: %s)", e.Reason, strings.Join(e.Subjects, ", "))
}

// IsModelBuildError reports whether err is or wraps a ModelBuildError.
func IsModelBuildError(err error) bool {
	var target *ModelBuildError
	return errors.As(err, &target)
}
