package services

import "time"

// Clock abstracts wall-clock reads so status resolution and overlap checks
// stay deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var SystemClock Clock = systemClock{}
