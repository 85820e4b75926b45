package app

import (
	"errors"
	"log/slog"
	"sync"

	"go-live-lottie/internal/preview"
)

// Workspace is what the router needs from the host editor besides events.
type Workspace interface {
	// ActiveDocument returns the document of the focused editor, if any.
	ActiveDocument() (preview.Document, bool, error)
}

// Router turns host editor events into preview surface operations.
// Entry points are serialised so events are applied in arrival order.
type Router struct {
	registry   *preview.Registry
	classifier preview.Classifier
	workspace  Workspace
	notifier   preview.Notifier
	kinds      map[string]struct{}
	logger     *slog.Logger

	mu sync.Mutex
}

// NewRouter returns a router watching documents whose kind is in kinds.
func NewRouter(registry *preview.Registry, classifier preview.Classifier, workspace Workspace,
	notifier preview.Notifier, kinds []string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	watched := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		watched[k] = struct{}{}
	}
	return &Router{
		registry:   registry,
		classifier: classifier,
		workspace:  workspace,
		notifier:   notifier,
		kinds:      watched,
		logger:     logger,
	}
}

func (r *Router) watched(doc preview.Document) bool {
	_, ok := r.kinds[doc.Kind()]
	return ok
}

// qualifies reports whether doc is watched and classifies as an animation.
func (r *Router) qualifies(doc preview.Document) bool {
	if !r.watched(doc) {
		return false
	}
	text, err := doc.Text()
	if err != nil {
		r.logger.Warn("read document", "document", doc.Key(), "error", err)
		return false
	}
	return r.classifier.Classify(text)
}

// OpenPreview handles the explicit open command. Classification is not
// required: the page shows its own invalid-file view.
func (r *Router) OpenPreview() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok, err := r.workspace.ActiveDocument()
	if err != nil {
		return err
	}
	if !ok || !r.watched(doc) {
		r.notifier.Info("Please open a JSON file to preview as Lottie animation.")
		return nil
	}
	return r.show(doc)
}

// ClosePreview disposes the open surface, if any.
func (r *Router) ClosePreview() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Close()
}

// ActiveEditorChanged opens or retargets the preview when doc is an animation.
func (r *Router) ActiveEditorChanged(doc preview.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc == nil || !r.qualifies(doc) {
		return nil
	}
	return r.show(doc)
}

// DocumentSaved refreshes the preview after a save of the active document.
func (r *Router) DocumentSaved(doc preview.Document) error {
	return r.refresh(doc, "save")
}

// DocumentChanged refreshes the preview after an unsaved edit of the active
// document.
func (r *Router) DocumentChanged(doc preview.Document) error {
	return r.refresh(doc, "change")
}

func (r *Router) refresh(doc preview.Document, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	surface, ok := r.registry.Current()
	if !ok {
		return nil
	}

	active, ok, err := r.workspace.ActiveDocument()
	if err != nil {
		return err
	}
	if !ok || active.Key() != doc.Key() {
		return nil
	}
	if !r.qualifies(doc) {
		return nil
	}

	r.logger.Debug("refresh preview", "document", doc.Key(), "reason", reason)
	return r.check(surface.UpdateContent(doc))
}

func (r *Router) show(doc preview.Document) error {
	surface, err := r.registry.GetOrCreate()
	if err != nil {
		r.notifier.Error("Lottie Preview: " + err.Error())
		return err
	}
	return r.check(surface.UpdateForDocument(doc))
}

// check logs operations that reached a disposed surface; the registry should
// make that impossible.
func (r *Router) check(err error) error {
	if errors.Is(err, preview.ErrSurfaceDisposed) {
		r.logger.Error("operation on disposed preview surface", "error", err)
	}
	return err
}
