package index

import (
	"sort"
	"sync"
)

// Collector is the fan-in point for per-document indexes built in
// parallel. Each (term, doc) key is produced by exactly one document, so
// Add only needs to serialise appends.
type Collector struct {
	mu   sync.Mutex
	rows []Row
	docs map[string]struct{}
	size int64
}

func NewCollector() *Collector {
	return &Collector{
		docs: make(map[string]struct{}),
	}
}

// Add records every term of p for docID. Adding the same document twice
// replaces its earlier rows.
func (c *Collector) Add(docID string, p *Positional) {
	rows := p.Rows(docID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.docs[docID]; seen {
		c.removeLocked(docID)
	}
	c.docs[docID] = struct{}{}
	c.rows = append(c.rows, rows...)
	for _, r := range rows {
		c.size += rowSize(r)
	}
}

func (c *Collector) removeLocked(docID string) {
	kept := c.rows[:0]
	for _, r := range c.rows {
		if r.DocID == docID {
			c.size -= rowSize(r)
			continue
		}
		kept = append(kept, r)
	}
	c.rows = kept
}

// Rows returns a snapshot of all rows ordered by term, then document.
func (c *Collector) Rows() []Row {
	c.mu.Lock()
	rows := make([]Row, len(c.rows))
	copy(rows, c.rows)
	c.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Term != rows[j].Term {
			return rows[i].Term < rows[j].Term
		}
		return rows[i].DocID < rows[j].DocID
	})
	return rows
}

// Len returns the number of rows collected.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

// DocCount returns the number of documents that contributed rows.
func (c *Collector) DocCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Size is a rough estimate of the collected rows' memory footprint in bytes.
func (c *Collector) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func rowSize(r Row) int64 {
	return int64(len(r.Term) + len(r.DocID) + len(r.Positions)*8 + 64)
}
