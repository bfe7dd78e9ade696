// Package index builds per-document positional indexes and merges them into
// the row set written to the index table.
package index

// Positional maps each distinct term of one document to the 0-based token
// positions where it occurs. Terms iterate in first-seen order.
type Positional struct {
	entries []TermPositions
	lookup  map[string]int
}

// Build scans tokens left to right. Positions are token indices, not byte
// offsets, so they are strictly increasing per term.
func Build(tokens []string) *Positional {
	p := &Positional{
		entries: make([]TermPositions, 0, len(tokens)/2),
		lookup:  make(map[string]int),
	}
	for pos, term := range tokens {
		idx, exists := p.lookup[term]
		if !exists {
			idx = len(p.entries)
			p.lookup[term] = idx
			p.entries = append(p.entries, TermPositions{
				Term:      term,
				Positions: make([]int, 0, 2),
			})
		}
		p.entries[idx].Positions = append(p.entries[idx].Positions, pos)
	}
	return p
}

// Len returns the number of distinct terms.
func (p *Positional) Len() int {
	return len(p.entries)
}

// Terms returns the distinct terms in first-seen order.
func (p *Positional) Terms() []string {
	terms := make([]string, len(p.entries))
	for i, e := range p.entries {
		terms[i] = e.Term
	}
	return terms
}

// Positions returns the positions of term, or nil if it does not occur.
func (p *Positional) Positions(term string) []int {
	idx, ok := p.lookup[term]
	if !ok {
		return nil
	}
	return p.entries[idx].Positions
}

// Rows flattens the index into one Row per term for docID.
func (p *Positional) Rows(docID string) []Row {
	rows := make([]Row, 0, len(p.entries))
	for _, e := range p.entries {
		rows = append(rows, Row{
			Term:      e.Term,
			DocID:     docID,
			Positions: e.Positions,
		})
	}
	return rows
}
