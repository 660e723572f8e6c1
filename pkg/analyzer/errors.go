package analyzer

import (
	"errors"
	"fmt"
)

// ErrNoData matches any *NoDataError via errors.Is.
var ErrNoData = errors.New("no performance data")

// NoDataError reports an empty log, or a component with no records.
// It is a normal outcome, not a failure.
type NoDataError struct {
	Component string // empty when the whole log is empty
}

func (e *NoDataError) Error() string {
	if e.Component == "" {
		return "no performance logs found"
	}
	return fmt.Sprintf("no data found for %s", e.Component)
}

// Is lets errors.Is(err, ErrNoData) match.
func (e *NoDataError) Is(target error) bool {
	return target == ErrNoData
}
