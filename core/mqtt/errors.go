package mqtt

import "errors"

// ErrNotOptimal is returned when asked to publish a schedule the solver did
// not prove optimal.
var ErrNotOptimal = errors.New("refusing to publish a non-optimal schedule")
