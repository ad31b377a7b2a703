package catalog

import "sort"

// Catalog is the full candidate roster indexed by ID. The zero value is empty
// and ready to use.
type Catalog struct {
	order []int
	byID  map[int]Candidate
}

// New builds a catalog from loader output. Candidates with an invalid position
// are skipped; a later duplicate ID replaces an earlier one.
func New(candidates []Candidate) *Catalog {
	c := &Catalog{byID: make(map[int]Candidate, len(candidates))}
	for _, cand := range candidates {
		if !cand.Position.Valid() {
			continue
		}
		if cand.Status == "" {
			cand.Status = StatusAvailable
		}
		if _, exists := c.byID[cand.ID]; !exists {
			c.order = append(c.order, cand.ID)
		}
		c.byID[cand.ID] = cand
	}
	return c
}

// Len returns the number of candidates.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Get looks up a candidate by ID.
func (c *Catalog) Get(id int) (Candidate, bool) {
	if c == nil || c.byID == nil {
		return Candidate{}, false
	}
	cand, ok := c.byID[id]
	return cand, ok
}

// Put replaces an existing candidate. It is a no-op for unknown IDs.
func (c *Catalog) Put(cand Candidate) {
	if c == nil || c.byID == nil {
		return
	}
	if _, ok := c.byID[cand.ID]; ok {
		c.byID[cand.ID] = cand
	}
}

// All returns candidates in load order.
func (c *Catalog) All() []Candidate {
	if c == nil {
		return nil
	}
	out := make([]Candidate, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Filter returns candidates matching position (empty matches all) and the
// available flag when onlyAvailable is set.
func (c *Catalog) Filter(position Position, onlyAvailable bool) []Candidate {
	var out []Candidate
	for _, cand := range c.All() {
		if position != "" && cand.Position != position {
			continue
		}
		if onlyAvailable && !cand.Available() {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// FindByName returns the first candidate whose name matches exactly.
func (c *Catalog) FindByName(name string) (Candidate, bool) {
	for _, cand := range c.All() {
		if cand.Name == name {
			return cand, true
		}
	}
	return Candidate{}, false
}

// ReleaseAll returns every candidate to the available state.
func (c *Catalog) ReleaseAll() {
	if c == nil {
		return
	}
	for id, cand := range c.byID {
		c.byID[id] = cand.Released()
	}
}

// TopByConvenience returns up to n available candidates for position sorted by
// descending convenience score.
func (c *Catalog) TopByConvenience(position Position, n int) []Candidate {
	pool := c.Filter(position, true)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].ConvenienceScore > pool[j].ConvenienceScore
	})
	if n > 0 && len(pool) > n {
		pool = pool[:n]
	}
	return pool
}
