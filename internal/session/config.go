package session

import "time"

// Option alters the default configuration of a session Store
type Option interface {
	apply(*Store)
}

type optionFunc func(s *Store)

func (f optionFunc) apply(s *Store) { f(s) }

// WithLatency makes Login and Signup wait for d before touching state,
// simulating a network round-trip. The default is no delay.
func WithLatency(d time.Duration) Option {
	return optionFunc(func(s *Store) {
		s.latency = d
	})
}
