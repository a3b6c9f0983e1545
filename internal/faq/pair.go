// Package faq turns documents and conversation exchanges into candidate FAQ
// entries with the help of the generative backend.
//
// Both the Extractor and the Learner are best-effort: malformed model output
// and backend failures are logged and degrade to "no result". Persisting the
// returned pairs is the caller's job.
package faq

import "github.com/kalambet/deskmate/internal/storage"

// Pair is a candidate FAQ entry not yet persisted.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// normalized returns p with both fields normalized and ok=false when either
// is empty afterwards.
func (p Pair) normalized() (Pair, bool) {
	q := storage.NormalizeFaqText(p.Question)
	a := storage.NormalizeFaqText(p.Answer)
	return Pair{Question: q, Answer: a}, q != "" && a != ""
}
