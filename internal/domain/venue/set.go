package venue

import "encoding/json"

// Set accumulates records in first-seen order, deduplicated by Identity.
// Re-adding a known identity refreshes its data in place.
type Set struct {
	index   map[string]int
	records []Record
}

// NewSet returns a set seeded with records.
func NewSet(records ...Record) *Set {
	s := &Set{index: make(map[string]int)}
	s.Add(records...)
	return s
}

// Add inserts records and returns how many were new.
func (s *Set) Add(records ...Record) int {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	added := 0
	for _, r := range records {
		id := r.Identity()
		if i, ok := s.index[id]; ok {
			s.records[i] = r.Clone()
			continue
		}
		s.index[id] = len(s.records)
		s.records = append(s.records, r.Clone())
		added++
	}
	return added
}

// Contains reports whether identity is present.
func (s *Set) Contains(identity string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[identity]
	return ok
}

// Len returns the number of distinct records.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the records in insertion order.
func (s *Set) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	if s == nil {
		return NewSet()
	}
	return NewSet(s.records...)
}

// MarshalJSON encodes the set as an ordered array.
func (s *Set) MarshalJSON() ([]byte, error) {
	recs := s.Records()
	if recs == nil {
		recs = []Record{}
	}
	return json.Marshal(recs)
}

// UnmarshalJSON decodes an array, deduplicating as it goes.
func (s *Set) UnmarshalJSON(b []byte) error {
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return err
	}
	*s = Set{index: make(map[string]int)}
	s.Add(recs...)
	return nil
}
