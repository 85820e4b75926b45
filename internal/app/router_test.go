package app

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"go-live-lottie/internal/contracts"
	"go-live-lottie/internal/lottie"
	"go-live-lottie/internal/preview"
)

const (
	validLottie = `{"layers":[{}],"fr":30,"ip":0,"op":60,"v":"5.5.0"}`
	plainJSON   = `{"name":"package"}`
)

type stubDocument struct {
	key  string
	kind string
	text string
}

func (d *stubDocument) Key() string           { return d.key }
func (d *stubDocument) Name() string          { return d.key }
func (d *stubDocument) Kind() string          { return d.kind }
func (d *stubDocument) Text() (string, error) { return d.text, nil }

type stubWorkspace struct {
	active preview.Document
	err    error
}

func (w *stubWorkspace) ActiveDocument() (preview.Document, bool, error) {
	return w.active, w.active != nil, w.err
}

type recordingChannel struct {
	sent   []contracts.UpdateMessage
	subs   []func(contracts.Feedback)
	closed bool
}

func (c *recordingChannel) Send(msg contracts.UpdateMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) Subscribe(fn func(contracts.Feedback)) func() {
	c.subs = append(c.subs, fn)
	return func() {}
}

func (c *recordingChannel) SetTitle(string) {}
func (c *recordingChannel) Reveal() error   { return nil }
func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

type recordingNotifier struct {
	infos  []string
	errors []string
}

func (n *recordingNotifier) Info(msg string)  { n.infos = append(n.infos, msg) }
func (n *recordingNotifier) Error(msg string) { n.errors = append(n.errors, msg) }

type routerEnv struct {
	router    *Router
	registry  *preview.Registry
	workspace *stubWorkspace
	notifier  *recordingNotifier
	channels  []*recordingChannel
	openErr   error
}

func newRouterEnv() *routerEnv {
	env := &routerEnv{workspace: &stubWorkspace{}, notifier: &recordingNotifier{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.registry = preview.NewRegistry(func() (preview.Channel, error) {
		if env.openErr != nil {
			return nil, env.openErr
		}
		ch := &recordingChannel{}
		env.channels = append(env.channels, ch)
		return ch, nil
	}, lottie.Classifier{}, env.notifier, logger)
	env.router = NewRouter(env.registry, lottie.Classifier{}, env.workspace, env.notifier, []string{"json"}, logger)
	return env
}

func (e *routerEnv) sent() []contracts.UpdateMessage {
	var all []contracts.UpdateMessage
	for _, ch := range e.channels {
		all = append(all, ch.sent...)
	}
	return all
}

func TestOpenPreviewWithoutActiveEditorInforms(t *testing.T) {
	env := newRouterEnv()

	if err := env.router.OpenPreview(); err != nil {
		t.Fatalf("OpenPreview: %v", err)
	}
	if len(env.channels) != 0 {
		t.Fatal("no surface should be created")
	}
	if len(env.notifier.infos) != 1 {
		t.Fatalf("expected one informational message, got %v", env.notifier.infos)
	}
}

func TestOpenPreviewIgnoresNonWatchedKind(t *testing.T) {
	env := newRouterEnv()
	env.workspace.active = &stubDocument{key: "main.go", kind: "go", text: "package main"}

	if err := env.router.OpenPreview(); err != nil {
		t.Fatalf("OpenPreview: %v", err)
	}
	if len(env.channels) != 0 {
		t.Fatal("no surface should be created for non-JSON documents")
	}
}

func TestOpenPreviewPushesInvalidDocument(t *testing.T) {
	env := newRouterEnv()
	env.workspace.active = &stubDocument{key: "pkg.json", kind: "json", text: plainJSON}

	if err := env.router.OpenPreview(); err != nil {
		t.Fatalf("OpenPreview: %v", err)
	}
	sent := env.sent()
	if len(sent) != 1 || sent[0].IsValid {
		t.Fatalf("expected one invalid update, got %+v", sent)
	}
}

func TestOpenPreviewReportsOpenFailure(t *testing.T) {
	env := newRouterEnv()
	env.openErr = errors.New("address in use")
	env.workspace.active = &stubDocument{key: "a.json", kind: "json", text: validLottie}

	if err := env.router.OpenPreview(); err == nil {
		t.Fatal("expected error")
	}
	if len(env.notifier.errors) != 1 {
		t.Fatalf("expected an error notification, got %v", env.notifier.errors)
	}
}

func TestActiveEditorChangedOpensForAnimations(t *testing.T) {
	env := newRouterEnv()
	doc := &stubDocument{key: "a.json", kind: "json", text: validLottie}

	if err := env.router.ActiveEditorChanged(doc); err != nil {
		t.Fatalf("ActiveEditorChanged: %v", err)
	}
	surface, ok := env.registry.Current()
	if !ok {
		t.Fatal("expected a surface")
	}
	if mirrored, _ := surface.Document(); mirrored != doc {
		t.Fatal("surface does not mirror the active document")
	}
	if sent := env.sent(); len(sent) != 1 || !sent[0].IsValid || sent[0].Content != validLottie {
		t.Fatalf("unexpected updates %+v", sent)
	}
}

func TestActiveEditorChangedIgnoresPlainJSON(t *testing.T) {
	env := newRouterEnv()
	if err := env.router.ActiveEditorChanged(&stubDocument{key: "pkg.json", kind: "json", text: plainJSON}); err != nil {
		t.Fatalf("ActiveEditorChanged: %v", err)
	}
	if _, ok := env.registry.Current(); ok {
		t.Fatal("plain JSON must not open a preview")
	}
	if err := env.router.ActiveEditorChanged(nil); err != nil {
		t.Fatalf("ActiveEditorChanged(nil): %v", err)
	}
}

func TestSwitchToNonJSONDocumentDoesNothing(t *testing.T) {
	env := newRouterEnv()
	lottieDoc := &stubDocument{key: "a.json", kind: "json", text: validLottie}
	if err := env.router.ActiveEditorChanged(lottieDoc); err != nil {
		t.Fatalf("ActiveEditorChanged: %v", err)
	}

	other := &stubDocument{key: "notes.md", kind: "markdown", text: validLottie}
	env.workspace.active = other
	if err := env.router.ActiveEditorChanged(other); err != nil {
		t.Fatalf("ActiveEditorChanged: %v", err)
	}

	if len(env.channels) != 1 {
		t.Fatalf("expected a single surface, got %d", len(env.channels))
	}
	if n := len(env.sent()); n != 1 {
		t.Fatalf("expected no further updates, got %d total", n)
	}
}

func TestSingleSurfaceAcrossEvents(t *testing.T) {
	env := newRouterEnv()
	a := &stubDocument{key: "a.json", kind: "json", text: validLottie}
	b := &stubDocument{key: "b.json", kind: "json", text: validLottie}

	for _, doc := range []*stubDocument{a, b, a} {
		env.workspace.active = doc
		if err := env.router.ActiveEditorChanged(doc); err != nil {
			t.Fatalf("ActiveEditorChanged: %v", err)
		}
	}
	if err := env.router.OpenPreview(); err != nil {
		t.Fatalf("OpenPreview: %v", err)
	}

	if len(env.channels) != 1 {
		t.Fatalf("expected one surface, got %d", len(env.channels))
	}
	surface, _ := env.registry.Current()
	if mirrored, _ := surface.Document(); mirrored != a {
		t.Fatal("surface should follow the last active animation")
	}
}

func TestRapidEditsPushInOrder(t *testing.T) {
	env := newRouterEnv()
	doc := &stubDocument{key: "a.json", kind: "json", text: validLottie}
	env.workspace.active = doc
	if err := env.router.ActiveEditorChanged(doc); err != nil {
		t.Fatalf("ActiveEditorChanged: %v", err)
	}

	edits := []string{
		`{"layers":[],"v":"1"}`,
		`{"layers":[],"v":"12"}`,
		`{"layers":[],"v":"123"}`,
	}
	for _, text := range edits {
		doc.text = text
		if err := env.router.DocumentChanged(doc); err != nil {
			t.Fatalf("DocumentChanged: %v", err)
		}
	}

	sent := env.sent()[1:]
	if len(sent) != len(edits) {
		t.Fatalf("expected %d updates, got %d", len(edits), len(sent))
	}
	for i, want := range edits {
		if sent[i].Content != want {
			t.Fatalf("update %d: got %q want %q", i, sent[i].Content, want)
		}
	}
}

func TestSaveAndChangeRequireActiveQualifyingDocument(t *testing.T) {
	env := newRouterEnv()
	active := &stubDocument{key: "a.json", kind: "json", text: validLottie}
	other := &stubDocument{key: "b.json", kind: "json", text: validLottie}

	// No surface yet: nothing happens.
	env.workspace.active = active
	if err := env.router.DocumentSaved(active); err != nil {
		t.Fatalf("DocumentSaved: %v", err)
	}
	if len(env.channels) != 0 {
		t.Fatal("save must never create a surface")
	}

	if err := env.router.ActiveEditorChanged(active); err != nil {
		t.Fatalf("ActiveEditorChanged: %v", err)
	}

	// Background document.
	if err := env.router.DocumentSaved(other); err != nil {
		t.Fatalf("DocumentSaved: %v", err)
	}
	// Active document broken by an edit.
	active.text = `{"layers":`
	if err := env.router.DocumentChanged(active); err != nil {
		t.Fatalf("DocumentChanged: %v", err)
	}
	if n := len(env.sent()); n != 1 {
		t.Fatalf("expected only the initial update, got %d", n)
	}

	active.text = validLottie
	if err := env.router.DocumentSaved(active); err != nil {
		t.Fatalf("DocumentSaved: %v", err)
	}
	if n := len(env.sent()); n != 2 {
		t.Fatalf("expected the save to push, got %d updates", n)
	}
}

func TestClosePreviewDisposes(t *testing.T) {
	env := newRouterEnv()
	doc := &stubDocument{key: "a.json", kind: "json", text: validLottie}
	env.workspace.active = doc
	if err := env.router.ActiveEditorChanged(doc); err != nil {
		t.Fatalf("ActiveEditorChanged: %v", err)
	}

	if err := env.router.ClosePreview(); err != nil {
		t.Fatalf("ClosePreview: %v", err)
	}
	if _, ok := env.registry.Current(); ok {
		t.Fatal("surface still registered")
	}
	if !env.channels[0].closed {
		t.Fatal("sandbox not closed")
	}

	if err := env.router.DocumentChanged(doc); err != nil {
		t.Fatalf("DocumentChanged after close: %v", err)
	}
	if n := len(env.sent()); n != 1 {
		t.Fatalf("no update expected after close, got %d", n)
	}
}

func TestWorkspaceErrorPropagates(t *testing.T) {
	env := newRouterEnv()
	env.workspace.err = errors.New("rpc closed")

	if err := env.router.OpenPreview(); err == nil {
		t.Fatal("expected workspace error")
	}
}
