package index

// Row is one persisted entry of the positional index: every position at
// which Term occurs in document DocID.
type Row struct {
	Term      string
	DocID     string
	Positions []int
}

// TermPositions pairs a term with its ascending occurrence positions in one
// document.
type TermPositions struct {
	Term      string
	Positions []int
}
