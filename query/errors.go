package query

import "fmt"

// CriterionError reports a malformed filter argument detected when the
// criterion is added. It is a caller error and never retried.
type CriterionError struct {
	Field    string
	Operator Operator
	Reason   string
}

func (e *CriterionError) Error() string {
	return fmt.Sprintf("invalid criterion %q %s: %s", e.Field, e.Operator, e.Reason)
}

// QueryError reports that the remote schema rejected the compiled query,
// typically a field or operator the entity does not recognize.
type QueryError struct {
	Code    string
	Message string
}

func (e *QueryError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("query rejected: %s", e.Message)
	}
	return fmt.Sprintf("query rejected: %s: %s", e.Code, e.Message)
}

// ExecutionError wraps a transport, authentication or remote failure
// encountered while executing a query or fetching a page.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("execution failed: %v", e.Cause) }
func (e *ExecutionError) Unwrap() error { return e.Cause }

// wrapExecution classifies an executor failure: QueryError passes through
// unchanged, everything else becomes an ExecutionError.
func wrapExecution(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *QueryError, *ExecutionError, *CriterionError:
		return err
	}
	return &ExecutionError{Cause: err}
}
