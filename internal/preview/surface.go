// Package preview owns the preview surface lifecycle: at most one browser
// preview exists per process, it mirrors one editor document at a time, and
// it is kept in sync by pushing update envelopes through a Channel.
package preview

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go-live-lottie/internal/contracts"
)

// ErrSurfaceDisposed is returned by operations on a surface that was torn down.
var ErrSurfaceDisposed = errors.New("preview surface disposed")

// Document is the host editor's view of one text buffer.
type Document interface {
	// Key identifies the document; two documents are the same when keys match.
	Key() string
	// Name is the human readable file name.
	Name() string
	// Kind is the host language tag, e.g. "json".
	Kind() string
	// Text reads the live buffer contents.
	Text() (string, error)
}

// Classifier decides whether text is a previewable animation.
type Classifier interface {
	Classify(text string) bool
}

// Notifier shows messages to the editor user.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// Channel is the duplex link to one rendering sandbox.
type Channel interface {
	// Send queues msg for the sandbox without waiting for delivery.
	Send(msg contracts.UpdateMessage) error
	// Subscribe registers fn for sandbox feedback until release is called.
	Subscribe(fn func(contracts.Feedback)) (release func())
	SetTitle(title string)
	Reveal() error
	Close() error
}

// ChannelFactory opens a new sandbox.
type ChannelFactory func() (Channel, error)

// State is the lifecycle state of a Surface.
type State int

const (
	StateOpen State = iota
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Surface is one open preview. Create it through Registry.GetOrCreate.
type Surface struct {
	registry   *Registry
	channel    Channel
	classifier Classifier
	notifier   Notifier
	logger     *slog.Logger

	mu    sync.Mutex
	state State
	doc   Document
	title string
	// pending is the last envelope handed to the channel.
	pending  *contracts.UpdateMessage
	releases []func()
}

func newSurface(r *Registry, ch Channel) *Surface {
	s := &Surface{
		registry:   r,
		channel:    ch,
		classifier: r.classifier,
		notifier:   r.notifier,
		logger:     r.logger,
		title:      defaultTitle,
	}
	s.Hold(ch.Subscribe(s.handleFeedback))
	ch.SetTitle(s.title)
	return s
}

const defaultTitle = "Lottie Preview"

// State returns the current lifecycle state.
func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Document returns the mirrored document, if any.
func (s *Surface) Document() (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, s.doc != nil
}

// Title returns the surface title.
func (s *Surface) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Hold ties release to the surface lifetime. It runs exactly once, on
// Dispose, or immediately when the surface is already disposed.
func (s *Surface) Hold(release func()) {
	if release == nil {
		return
	}
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		release()
		return
	}
	s.releases = append(s.releases, release)
	s.mu.Unlock()
}

// Reveal brings the sandbox to the front without changing what it mirrors.
func (s *Surface) Reveal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return ErrSurfaceDisposed
	}
	return s.channel.Reveal()
}

// UpdateForDocument retargets the surface at doc and pushes its content.
func (s *Surface) UpdateForDocument(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return ErrSurfaceDisposed
	}

	s.doc = doc
	s.title = "Preview: " + doc.Name()
	s.channel.SetTitle(s.title)
	return s.pushLocked(doc)
}

// UpdateContent re-reads doc and pushes it to the sandbox, valid or not.
func (s *Surface) UpdateContent(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return ErrSurfaceDisposed
	}
	return s.pushLocked(doc)
}

// pushLocked sends under s.mu so envelopes leave in the order they were read.
func (s *Surface) pushLocked(doc Document) error {
	text, err := doc.Text()
	if err != nil {
		return fmt.Errorf("read %s: %w", doc.Key(), err)
	}

	msg := contracts.UpdateMessage{
		Type:     contracts.MessageTypeUpdate,
		Content:  text,
		IsValid:  s.classifier.Classify(text),
		FileName: doc.Name(),
	}
	s.pending = &msg

	if err := s.channel.Send(msg); err != nil {
		return fmt.Errorf("send update: %w", err)
	}
	s.logger.Debug("pushed update", "document", doc.Key(), "bytes", len(text), "valid", msg.IsValid)
	return nil
}

func (s *Surface) handleFeedback(fb contracts.Feedback) {
	switch fb.Type {
	case contracts.MessageTypeReady:
		s.resend()
	case contracts.MessageTypeError:
		s.logger.Warn("sandbox reported error", "message", fb.Message)
		s.notifier.Error("Lottie Preview: " + fb.Message)
	}
}

// resend answers a ready handshake with exactly one update. It prefers the
// live text and falls back to the last pushed envelope.
func (s *Surface) resend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed || s.doc == nil {
		return
	}

	err := s.pushLocked(s.doc)
	if err == nil {
		return
	}
	s.logger.Warn("resend from live document failed", "error", err)
	if s.pending == nil {
		return
	}
	if err := s.channel.Send(*s.pending); err != nil {
		s.logger.Warn("resend of last update failed", "error", err)
	}
}

// Dispose tears the surface down. The registry slot is cleared before the
// sandbox is closed. Held releases run once; later calls are no-ops.
func (s *Surface) Dispose() error {
	s.registry.clear(s)

	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateDisposed
	releases := s.releases
	s.releases = nil
	s.mu.Unlock()

	err := s.channel.Close()
	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
	s.logger.Info("preview closed")
	return err
}
