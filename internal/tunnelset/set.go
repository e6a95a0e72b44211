package tunnelset

// initSize is the starting capacity a Set grows into on its first
// insert, doubling from there.
const initSize = 16

// Set is an ordered, unsorted collection of tunnel references. Order
// is not semantic; Delete preserves the relative order of the
// remaining elements. Every operation is O(n) and assumes the caller
// holds the manager's global lock.
type Set struct {
	records []*Record
}

// Len returns the number of records in the set.
func (s *Set) Len() int {
	return len(s.records)
}

// Insert appends rec to the set.
func (s *Set) Insert(rec *Record) {
	if s.records == nil {
		s.records = make([]*Record, 0, initSize)
	}
	s.records = append(s.records, rec)
}

// Lookup returns the index of the record with the given URL, or -1.
func (s *Set) Lookup(url string) int {
	for i, r := range s.records {
		if r.URL == url {
			return i
		}
	}
	return -1
}

// Get returns the record with the given URL, or nil.
func (s *Set) Get(url string) *Record {
	if i := s.Lookup(url); i >= 0 {
		return s.records[i]
	}
	return nil
}

// Replace finds the element whose URL equals rec.URL and swaps it for
// rec, returning the displaced record. If no element matches, Replace
// returns nil and leaves the set unmodified.
func (s *Set) Replace(rec *Record) *Record {
	i := s.Lookup(rec.URL)
	if i < 0 {
		return nil
	}
	old := s.records[i]
	s.records[i] = rec
	return old
}

// Delete removes the record with the given URL, preserving the
// relative order of the remaining elements, and returns it. Returns
// nil if no record has that URL.
func (s *Set) Delete(url string) *Record {
	i := s.Lookup(url)
	if i < 0 {
		return nil
	}
	rec := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	return rec
}

// At returns the record at position i. The caller must ensure
// 0 <= i < Len().
func (s *Set) At(i int) *Record {
	return s.records[i]
}

// URLs returns the URLs of every record currently in the set, in
// current set order.
func (s *Set) URLs() []string {
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.URL
	}
	return out
}

// Each calls fn for every record currently in the set, in order. fn
// must not mutate the set's membership (insert/delete); mutating a
// record's own fields is fine.
func (s *Set) Each(fn func(*Record)) {
	for _, r := range s.records {
		fn(r)
	}
}
