package orm

import (
	"fmt"
)

// ContractError is a programming error: refining or executing with no
// pending statement, an unknown ordering field or direction, operating on a
// deleted record, or using an unregistered row type. Contract errors are
// delivered by panic and are not meant to be recovered in production code.
type ContractError struct {
	msg string
}

func (e *ContractError) Error() string {
	return e.msg
}

func contractPanic(format string, args ...interface{}) {
	panic(&ContractError{msg: fmt.Sprintf(format, args...)})
}

// ExecutionError wraps a failure to execute a statement or to extract the
// requested result shape from it. The underlying error is never masked; it
// is available through Unwrap.
type ExecutionError struct {
	Stmt string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("orm: execution of %q failed: %s", e.Stmt, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
