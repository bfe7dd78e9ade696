package pipeline

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/crypto"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
)

// Policy decides what a per-document decryption failure does to the run.
type Policy int

const (
	// FailFast aborts the whole run on the first failing document, before
	// anything is written.
	FailFast Policy = iota
	// Skip records failing documents in the report and indexes the rest.
	Skip
)

func (p Policy) String() string {
	if p == Skip {
		return config.PolicySkip
	}
	return config.PolicyFailFast
}

// ParsePolicy maps a config.IndexerConfig.FailurePolicy value to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case config.PolicyFailFast, "":
		return FailFast, nil
	case config.PolicySkip:
		return Skip, nil
	default:
		return FailFast, apperrors.Newf(apperrors.ErrConfiguration, "unknown failure policy %q", name)
	}
}

// RunContext is the state every per-document worker needs. It is built once
// per run and workers only read it.
type RunContext struct {
	RunID  string
	Key    []byte
	Policy Policy
}

// Status is the tagged result of processing one document.
type Status int

const (
	// statusPending marks a document the map phase never reached.
	statusPending Status = iota
	StatusIndexed
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case statusPending:
		return "pending"
	case StatusIndexed:
		return "indexed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is what happened to one document in the map phase.
type Outcome struct {
	DocID  string
	Status Status
	Tokens int
	Terms  int
	Reason string
	Err    error

	index *index.Positional
}

// Index returns the document's positional index; nil unless indexed.
func (o Outcome) Index() *index.Positional {
	return o.index
}

// ProcessDocument decrypts, tokenizes and indexes one document. It has no
// side effects and is safe to call from any number of goroutines.
func ProcessDocument(rc *RunContext, doc source.Document) Outcome {
	content, err := crypto.DecryptHex(doc.EncryptedContent, doc.IV, doc.AuthTag, rc.Key)
	if err != nil {
		return Outcome{
			DocID:  doc.DocID,
			Status: StatusFailed,
			Reason: apperrors.Class(err),
			Err:    apperrors.ForDocument(err, doc.DocID),
		}
	}
	if content == "" {
		return Outcome{DocID: doc.DocID, Status: StatusSkipped, Reason: "empty content"}
	}

	tokens := tokenizer.Tokenize(content)
	idx := index.Build(tokens)
	return Outcome{
		DocID:  doc.DocID,
		Status: StatusIndexed,
		Tokens: len(tokens),
		Terms:  idx.Len(),
		index:  idx,
	}
}
