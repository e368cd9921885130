package compile

import (
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports a problem in a service declaration file.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError converts a CUE SDK error into a readable error with
// positions preserved.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	if list := cueerrors.Errors(err); len(list) > 0 {
		first := list[0]
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     first.Position(),
		}
	}
	return err
}
