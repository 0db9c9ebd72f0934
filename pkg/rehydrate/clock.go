package rehydrate

import "time"

// Clock abstracts timer scheduling so coordinator tests can fire or cancel
// the debounce window without sleeping.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is the cancel handle for a scheduled function.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
