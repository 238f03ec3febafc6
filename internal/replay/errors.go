package replay

import "errors"

// ErrInvalidRange is returned when the replay range is empty or reversed.
var ErrInvalidRange = errors.New("replay range start must not be after end")
