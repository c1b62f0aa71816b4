// Package invariant defines the typed failure raised when stage output breaks a
// documented structural guarantee. These failures are never patched over: the
// orchestrator reports them with their context so the offending data can be
// inspected.
package invariant

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Code string

const (
	S1NoSegments      Code = "S1_NO_SEGMENTS"
	S2NoTurns         Code = "S2_NO_TURNS"
	RoleMapNoSpeakers Code = "ROLEMAP_NO_SPEAKERS"
	RoleMapIncomplete Code = "ROLEMAP_INCOMPLETE"
	SchemaViolation   Code = "SCHEMA_VIOLATION"
)

// Error carries a machine-readable code and the diagnostic payload.
type Error struct {
	Code    Code
	Context map[string]any
}

func New(code Code, ctx map[string]any) *Error {
	if ctx == nil {
		ctx = map[string]any{}
	}
	return &Error{Code: code, Context: ctx}
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("pipeline invariant violated: %s", e.Code)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Context[k]))
	}
	return fmt.Sprintf("pipeline invariant violated: %s (%s)", e.Code, strings.Join(parts, " "))
}

// As extracts an invariant error from err's chain.
func As(err error) (*Error, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// Is reports whether err carries the given invariant code.
func Is(err error, code Code) bool {
	ie, ok := As(err)
	return ok && ie.Code == code
}
