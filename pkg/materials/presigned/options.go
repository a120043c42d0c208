package presigned

import "time"

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the key used for HMAC signing. An empty key disables
// signing and validation.
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithDefaultExpiration sets how long links stay valid (default 1 hour)
func WithDefaultExpiration(d time.Duration) Option {
	return func(s *Signer) {
		s.defaultExpiration = d
	}
}

// withClock overrides time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}
