package preview

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds the single live Surface of the process.
type Registry struct {
	open       ChannelFactory
	classifier Classifier
	notifier   Notifier
	logger     *slog.Logger

	mu      sync.Mutex
	current *Surface
}

// NewRegistry returns an empty registry that opens sandboxes with open.
func NewRegistry(open ChannelFactory, classifier Classifier, notifier Notifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		open:       open,
		classifier: classifier,
		notifier:   notifier,
		logger:     logger,
	}
}

// GetOrCreate returns the live surface, revealing it, or opens a new one.
// An existing surface keeps the document it mirrors.
func (r *Registry) GetOrCreate() (*Surface, error) {
	r.mu.Lock()
	if s := r.current; s != nil {
		r.mu.Unlock()
		if err := s.Reveal(); err != nil {
			r.logger.Warn("reveal preview", "error", err)
		}
		return s, nil
	}
	defer r.mu.Unlock()

	ch, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("open preview: %w", err)
	}

	s := newSurface(r, ch)
	r.current = s
	r.logger.Info("preview opened")
	return s, nil
}

// Current returns the live surface without creating one.
func (r *Registry) Current() (*Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// Close disposes the live surface, if any.
func (r *Registry) Close() error {
	s, ok := r.Current()
	if !ok {
		return nil
	}
	return s.Dispose()
}

// clear empties the slot when it still holds s.
func (r *Registry) clear(s *Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == s {
		r.current = nil
	}
}
