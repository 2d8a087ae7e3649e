package core

import "time"

// SetClock replaces the service clock in tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetKeyGenerator replaces the key generator in tests.
func (s *Service) SetKeyGenerator(fn func(n int) (string, error)) { s.newKey = fn }
