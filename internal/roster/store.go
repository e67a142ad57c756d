package roster

import (
	"bytes"
	"context"
	"fmt"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
)

// Store is an immutable, ordered roster. Safe for concurrent reads.
type Store struct {
	people []models.Person
}

func NewStore(people []models.Person) *Store {
	cp := make([]models.Person, len(people))
	copy(cp, people)
	return &Store{people: cp}
}

// FindByUniqueID returns the first person whose UniqueID equals id
// exactly. An empty id never matches.
func (s *Store) FindByUniqueID(id string) (models.Person, bool) {
	if id == "" {
		return models.Person{}, false
	}
	for _, p := range s.people {
		if p.UniqueID == id {
			return p, true
		}
	}
	return models.Person{}, false
}

func (s *Store) Len() int { return len(s.people) }

// Duplicates lists unique ids that appear more than once, in order of
// first repetition. Lookups resolve them to the earliest row.
func (s *Store) Duplicates() []string {
	seen := make(map[string]int, len(s.people))
	var dups []string
	for _, p := range s.people {
		if p.UniqueID == "" {
			continue
		}
		seen[p.UniqueID]++
		if seen[p.UniqueID] == 2 {
			dups = append(dups, p.UniqueID)
		}
	}
	return dups
}

// Load fetches source through opener and parses it. Every failure
// matches common.ErrLoad.
func Load(ctx context.Context, opener Opener, source string, logger logging.Logger) (*Store, error) {
	data, err := opener.Open(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrLoad, source, err)
	}

	people, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	s := NewStore(people)
	for _, id := range s.Duplicates() {
		logger.Warn(ctx, "duplicate unique id in roster, first row wins", "unique_id", id)
	}
	logger.Info(ctx, "roster loaded", "source", source, "people", s.Len())
	return s, nil
}
