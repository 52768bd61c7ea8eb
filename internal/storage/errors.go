package storage

import "errors"

// ErrNotFound is returned by mutating operations that matched no rows.
// Read operations return (nil, nil) instead.
var ErrNotFound = errors.New("not found")
