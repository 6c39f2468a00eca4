package middleware

import (
	"strings"
	"sync"
)

// syncBuilder strings.Builder, безопасный для записи из handler goroutine
type syncBuilder struct {
	b  strings.Builder
	mu sync.Mutex
}

func (s *syncBuilder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuilder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
