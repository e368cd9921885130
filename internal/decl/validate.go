package decl

import (
	"fmt"
	"regexp"
)

// Validation error codes (D100-D199)
const (
	// Service-level errors (D100-D109)
	ErrNameEmpty          = "D100" // service name is required
	ErrInvalidMode        = "D101" // unknown deployment mode
	ErrStateVarInvalid    = "D102" // state variable is not an identifier
	ErrPoolMissing        = "D103" // pooled mode requires pool bounds
	ErrPoolForbidden      = "D104" // pool bounds only valid in pooled mode
	ErrPoolBoundsInvalid  = "D105" // min > max or max == 0
	ErrServiceNameMissing = "D106" // named mode requires service_name
	ErrServiceNameExtra   = "D107" // service_name only valid in named mode

	// Clause-level errors (D110-D119)
	ErrNoClauses          = "D110" // at least one public clause required
	ErrClauseNameInvalid  = "D111" // clause name is not an identifier
	ErrDuplicateClause    = "D112" // duplicate clause name
	ErrInvalidVisibility  = "D113" // unknown visibility
	ErrMissingStateSlot   = "D114" // public clause missing leading state slot
	ErrParamNameInvalid   = "D115" // parameter is not an identifier
	ErrDuplicateParam     = "D116" // duplicate parameter name within a clause
)

// identRe matches valid identifiers for service, clause, and parameter names.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a Service declaration against the model invariants.
// Returns all errors found (does not fail-fast).
func (s *Service) Validate() []ValidationError {
	var errs []ValidationError

	if s.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Code: ErrNameEmpty, Message: "service name is required"})
	} else if !identRe.MatchString(s.Name) {
		errs = append(errs, ValidationError{Field: "name", Code: ErrNameEmpty, Message: fmt.Sprintf("invalid service name %q", s.Name)})
	}

	if !ValidModes[s.Mode] {
		errs = append(errs, ValidationError{Field: "mode", Code: ErrInvalidMode, Message: fmt.Sprintf("unknown mode %q", s.Mode)})
	}

	if s.StateVar != "" && !identRe.MatchString(s.StateVar) {
		errs = append(errs, ValidationError{Field: "state_name", Code: ErrStateVarInvalid, Message: fmt.Sprintf("invalid state variable %q", s.StateVar)})
	}

	errs = append(errs, s.validatePool()...)
	errs = append(errs, s.validateServiceName()...)
	errs = append(errs, s.validateClauses()...)

	return errs
}

// validatePool enforces: pool bounds present iff mode is Pooled, min <= max.
func (s *Service) validatePool() []ValidationError {
	var errs []ValidationError
	switch {
	case s.Mode == Pooled && s.Pool == nil:
		errs = append(errs, ValidationError{Field: "pool", Code: ErrPoolMissing, Message: "pooled mode requires pool bounds"})
	case s.Mode != Pooled && s.Pool != nil:
		errs = append(errs, ValidationError{Field: "pool", Code: ErrPoolForbidden, Message: fmt.Sprintf("pool bounds not valid in %s mode", s.Mode)})
	case s.Pool != nil:
		if s.Pool.Max == 0 {
			errs = append(errs, ValidationError{Field: "pool.max", Code: ErrPoolBoundsInvalid, Message: "max must be at least 1"})
		}
		if s.Pool.Min > s.Pool.Max {
			errs = append(errs, ValidationError{Field: "pool", Code: ErrPoolBoundsInvalid, Message: fmt.Sprintf("min %d exceeds max %d", s.Pool.Min, s.Pool.Max)})
		}
	}
	return errs
}

// validateServiceName enforces: service_name present iff mode is Named.
func (s *Service) validateServiceName() []ValidationError {
	var errs []ValidationError
	switch {
	case s.Mode == Named && s.ServiceName == "":
		errs = append(errs, ValidationError{Field: "service_name", Code: ErrServiceNameMissing, Message: "named mode requires service_name"})
	case s.Mode != Named && s.ServiceName != "":
		errs = append(errs, ValidationError{Field: "service_name", Code: ErrServiceNameExtra, Message: fmt.Sprintf("service_name not valid in %s mode", s.Mode)})
	}
	return errs
}

func (s *Service) validateClauses() []ValidationError {
	var errs []ValidationError

	public := 0
	seen := make(map[string]bool, len(s.Clauses))
	for i := range s.Clauses {
		c := &s.Clauses[i]
		field := fmt.Sprintf("functions[%d]", i)

		if !identRe.MatchString(c.Name) {
			errs = append(errs, ValidationError{Field: field, Code: ErrClauseNameInvalid, Message: fmt.Sprintf("invalid clause name %q", c.Name)})
		}
		if seen[c.Name] {
			errs = append(errs, ValidationError{Field: field, Code: ErrDuplicateClause, Message: fmt.Sprintf("duplicate clause %q", c.Name)})
		}
		seen[c.Name] = true

		if !ValidVisibilities[c.Visibility] {
			errs = append(errs, ValidationError{Field: field, Code: ErrInvalidVisibility, Message: fmt.Sprintf("unknown visibility %q", c.Visibility)})
		}

		if c.Visibility == Public {
			public++
			// Public clauses always carry the incoming state as their
			// first parameter. The client API elides it.
			if len(c.Params) == 0 {
				errs = append(errs, ValidationError{Field: field, Code: ErrMissingStateSlot, Message: fmt.Sprintf("public clause %q must declare the state slot as its first parameter", c.Name)})
			}
		}

		params := make(map[string]bool, len(c.Params))
		for _, p := range c.Params {
			if !identRe.MatchString(p) {
				errs = append(errs, ValidationError{Field: field, Code: ErrParamNameInvalid, Message: fmt.Sprintf("invalid parameter %q", p)})
			}
			if params[p] {
				errs = append(errs, ValidationError{Field: field, Code: ErrDuplicateParam, Message: fmt.Sprintf("duplicate parameter %q", p)})
			}
			params[p] = true
		}
	}

	if public == 0 {
		errs = append(errs, ValidationError{Field: "functions", Code: ErrNoClauses, Message: "at least one public clause is required"})
	}

	return errs
}
