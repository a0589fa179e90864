// Package idgen abstracts UUID generation so callers can inject
// deterministic IDs in tests.
package idgen

import "github.com/google/uuid"

// Generator produces unique identifiers.
type Generator interface {
	// New returns a freshly generated UUID string.
	New() string
}

// uuidGenerator generates RFC 4122 v4 UUIDs via google/uuid.
type uuidGenerator struct{}

// New returns a Generator backed by github.com/google/uuid.
func New() Generator {
	return uuidGenerator{}
}

func (uuidGenerator) New() string {
	return uuid.New().String()
}

// Sequence is a deterministic test double that returns IDs from a fixed
// list, repeating the last one once exhausted. Useful for asserting on generated IDs without
// brittle randomness.
type Sequence struct {
	ids []string
	pos int
}

// NewSequence returns a Generator that yields ids in order, repeating the
// last id once exhausted.
func NewSequence(ids ...string) *Sequence {
	return &Sequence{ids: ids}
}

func (s *Sequence) New() string {
	if len(s.ids) == 0 {
		return ""
	}
	id := s.ids[s.pos]
	if s.pos < len(s.ids)-1 {
		s.pos++
	}
	return id
}
