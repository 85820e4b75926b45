package lsp

import (
	"fmt"
	"net/url"
	"path"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Store keeps the text of open documents keyed by URI and tracks which one
// the client is currently working on.
type Store struct {
	mu     sync.RWMutex
	docs   map[protocol.DocumentUri]*entry
	active protocol.DocumentUri
}

type entry struct {
	languageID string
	text       string
	version    protocol.Integer
}

func NewStore() *Store {
	return &Store{docs: make(map[protocol.DocumentUri]*entry)}
}

// Open records a document and makes it active.
func (s *Store) Open(item protocol.TextDocumentItem) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[item.URI] = &entry{languageID: item.LanguageID, text: item.Text, version: item.Version}
	s.active = item.URI
	return &Document{store: s, uri: item.URI}
}

// Apply applies content changes in order. Whole-document events replace the
// text; ranged events splice it.
func (s *Store) Apply(uri protocol.DocumentUri, version protocol.Integer, changes []any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[uri]
	if !ok {
		return nil, fmt.Errorf("change for unopened document %s", uri)
	}
	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			e.text = change.Text
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				e.text = change.Text
				continue
			}
			e.text = applyEdit(e.text, *change.Range, change.Text)
		default:
			return nil, fmt.Errorf("unexpected change event type %T", raw)
		}
	}
	e.version = version
	return &Document{store: s, uri: uri}, nil
}

// Save replaces the stored text when the client includes it.
func (s *Store) Save(uri protocol.DocumentUri, text *string) (*Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.docs[uri]
	if !ok {
		return nil, false
	}
	if text != nil {
		e.text = *text
	}
	return &Document{store: s, uri: uri}, true
}

func (s *Store) Close(uri protocol.DocumentUri) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
	if s.active == uri {
		s.active = ""
	}
}

// Activate makes uri the active document if it is open.
func (s *Store) Activate(uri protocol.DocumentUri) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[uri]; !ok {
		return false
	}
	s.active = uri
	return true
}

// Active returns the active document, if any.
func (s *Store) Active() (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return nil, false
	}
	return &Document{store: s, uri: s.active}, true
}

func (s *Store) IsActive(uri protocol.DocumentUri) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active == uri
}

func (s *Store) lookup(uri protocol.DocumentUri) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[uri]
	if !ok {
		return entry{}, false
	}
	return *e, true
}

// applyEdit splices replacement into text over r. Positions are UTF-16 based.
func applyEdit(text string, r protocol.Range, replacement string) string {
	start := r.Start.IndexIn(text)
	end := r.End.IndexIn(text)
	if end < start {
		start, end = end, start
	}
	return text[:start] + replacement + text[end:]
}

// Document is a view of a stored document. Text reads the latest stored
// content on every call.
type Document struct {
	store *Store
	uri   protocol.DocumentUri
}

func (d *Document) Key() string {
	return d.uri
}

func (d *Document) Name() string {
	u, err := url.Parse(d.uri)
	if err != nil || u.Path == "" {
		return d.uri
	}
	return path.Base(u.Path)
}

func (d *Document) Kind() string {
	e, _ := d.store.lookup(d.uri)
	return e.languageID
}

func (d *Document) Text() (string, error) {
	e, ok := d.store.lookup(d.uri)
	if !ok {
		return "", fmt.Errorf("document %s is closed", d.uri)
	}
	return e.text, nil
}
