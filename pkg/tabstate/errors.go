package tabstate

import "fmt"

// ErrorKind enumerates every way browser tab state can be invalid or a
// transition can fail. The set is closed; callers switch on it exhaustively.
type ErrorKind string

const (
	ErrActiveTabMissing         ErrorKind = "ACTIVE_TAB_MISSING"
	ErrDuplicateTabID           ErrorKind = "DUPLICATE_TAB_ID"
	ErrDuplicateTabOrder        ErrorKind = "DUPLICATE_TAB_ORDER"
	ErrTabOrderMismatch         ErrorKind = "TAB_ORDER_MISMATCH"
	ErrDuplicateTabIndex        ErrorKind = "DUPLICATE_TAB_INDEX"
	ErrTabCountMismatch         ErrorKind = "TAB_COUNT_MISMATCH"
	ErrHistoryCursorOutOfBounds ErrorKind = "HISTORY_CURSOR_OUT_OF_BOUNDS"
	ErrCannotCloseLastTab       ErrorKind = "CANNOT_CLOSE_LAST_TAB"
	ErrNoBackHistory            ErrorKind = "NO_BACK_HISTORY"
	ErrNoForwardHistory         ErrorKind = "NO_FORWARD_HISTORY"
	ErrTabIndexUnavailable      ErrorKind = "TAB_INDEX_UNAVAILABLE"
	ErrTabNotFound              ErrorKind = "TAB_NOT_FOUND"
	ErrTabIndexNotFound         ErrorKind = "TAB_INDEX_NOT_FOUND"
)

// StateError is a typed browser-state failure.
type StateError struct {
	Kind   ErrorKind
	Detail string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Is supports errors.Is against another StateError of the same kind.
func (e *StateError) Is(target error) bool {
	t, ok := target.(*StateError)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, format string, args ...interface{}) *StateError {
	return &StateError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from an error, or "" if it is not a StateError.
func KindOf(err error) ErrorKind {
	if se, ok := err.(*StateError); ok {
		return se.Kind
	}
	return ""
}
