package dedup

// Session guards against handling the same rendered element twice in one
// run. It is never persisted and is not safe for concurrent use.
type Session struct {
	seen map[string]struct{}
}

func NewSession() *Session {
	return &Session{seen: make(map[string]struct{})}
}

func (s *Session) Seen(key string) bool {
	_, ok := s.seen[key]
	return ok
}

func (s *Session) Mark(key string) {
	s.seen[key] = struct{}{}
}

func (s *Session) Len() int {
	return len(s.seen)
}
