package chat

import "time"

// Option alters the default configuration of a conversation Store
type Option interface {
	apply(*Store)
}

type optionFunc func(s *Store)

func (f optionFunc) apply(s *Store) { f(s) }

// WithIdleWindow sets how long after the last keystroke a typing
// presence entry expires. The default is two seconds.
func WithIdleWindow(d time.Duration) Option {
	return optionFunc(func(s *Store) {
		s.idle = d
	})
}
