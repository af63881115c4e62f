package backend

import "errors"

// ErrBaseURLMissing indicates no backend base URL was configured.
var ErrBaseURLMissing = errors.New("backend base URL not configured")
