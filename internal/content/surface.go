package content

import (
	"context"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/bnema/tranquilize/internal/applier"
)

// DocumentSurface applies rule states to a parsed HTML document
type DocumentSurface struct {
	mu      sync.Mutex
	doc     *goquery.Document
	applier *applier.Applier
}

// NewDocumentSurface wraps doc
func NewDocumentSurface(doc *goquery.Document, a *applier.Applier) *DocumentSurface {
	if a == nil {
		a = applier.New(nil, nil)
	}
	return &DocumentSurface{doc: doc, applier: a}
}

// Apply implements Surface
func (s *DocumentSurface) Apply(_ context.Context, states []applier.RuleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applier.ApplyStates(s.doc, states)
	return nil
}

// HTML renders the document
func (s *DocumentSurface) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Html()
}
