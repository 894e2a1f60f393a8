package dvql

import "errors"

// Configuration errors.
var (
	ErrConfigNotFound = errors.New("no .dvql.yaml found")
)

// Translation errors.
var (
	ErrUnknownAlias   = errors.New("unknown table alias")
	ErrDuplicateAlias = errors.New("duplicate table alias")
	ErrInvalidJoin    = errors.New("invalid join")
)
