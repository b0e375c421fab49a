package catalog

import "errors"

var (
	// ErrUnknownTaskType is returned when neither tier has a route for a task type
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrInvalidTables is returned when a table set fails validation
	ErrInvalidTables = errors.New("invalid catalog tables")
)
