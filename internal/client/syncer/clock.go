package syncer

import "time"

// Clock abstracts wall-clock reads so coordinator tests can run
// deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
