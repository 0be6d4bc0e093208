package selection

import (
	"errors"
	"slices"
)

// MaxArticles is the largest number of articles a discussion can target.
const MaxArticles = 5

// ErrFull is returned by Add when the selection already holds MaxArticles ids.
var ErrFull = errors.New("You can't select more than 5 articles")

// ErrEmpty is returned by Require when nothing is selected.
var ErrEmpty = errors.New("You must select at least one article")

// Selection is an ordered set of article ids. Insertion order is display order.
type Selection struct {
	ids []string
}

// Add appends id. Adding an id already present is a no-op.
func (s *Selection) Add(id string) error {
	if s.Contains(id) {
		return nil
	}
	if len(s.ids) >= MaxArticles {
		return ErrFull
	}
	s.ids = append(s.ids, id)
	return nil
}

// Remove drops id, keeping the order of the rest.
func (s *Selection) Remove(id string) {
	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
}

// Toggle removes id if selected, otherwise adds it.
func (s *Selection) Toggle(id string) error {
	if s.Contains(id) {
		s.Remove(id)
		return nil
	}
	return s.Add(id)
}

func (s *Selection) Clear() { s.ids = nil }

func (s *Selection) Contains(id string) bool { return slices.Contains(s.ids, id) }

func (s *Selection) Len() int { return len(s.ids) }

// IDs returns a copy of the selected ids in insertion order.
func (s *Selection) IDs() []string { return slices.Clone(s.ids) }

// Require returns the ids, or ErrEmpty when nothing is selected.
func (s *Selection) Require() ([]string, error) {
	if len(s.ids) == 0 {
		return nil, ErrEmpty
	}
	return s.IDs(), nil
}
