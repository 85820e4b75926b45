package lsp

import (
	"testing"

	"go-live-lottie/internal/contracts"
	"go-live-lottie/internal/logging"
	"go-live-lottie/internal/preview"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	animURI   = "file:///work/spin.json"
	animText  = `{"layers":[{}],"fr":30,"ip":0,"op":60,"v":"5.5.0"}`
	plainURI  = "file:///work/package.json"
	plainText = `{"name":"package"}`
)

type recordingChannel struct {
	sent   []contracts.UpdateMessage
	closed bool
}

func (c *recordingChannel) Send(msg contracts.UpdateMessage) error {
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) Subscribe(func(contracts.Feedback)) func() { return func() {} }
func (c *recordingChannel) SetTitle(string)                            {}
func (c *recordingChannel) Reveal() error                              { return nil }
func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

type serverEnv struct {
	ls       *Server
	channels []*recordingChannel
}

func newServerEnv() *serverEnv {
	env := &serverEnv{}
	ls := &Server{store: NewStore(), logger: logging.Discard()}
	env.ls = ls.wire(func() (preview.Channel, error) {
		ch := &recordingChannel{}
		env.channels = append(env.channels, ch)
		return ch, nil
	}, []string{"json"})
	return env
}

func (env *serverEnv) open(t *testing.T, uri, text string) {
	t.Helper()
	err := env.ls.textDocumentDidOpen(nil, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "json", Version: 1, Text: text},
	})
	if err != nil {
		t.Fatalf("didOpen: %v", err)
	}
}

func (env *serverEnv) last(t *testing.T) contracts.UpdateMessage {
	t.Helper()
	if len(env.channels) != 1 {
		t.Fatalf("expected one preview, got %d", len(env.channels))
	}
	sent := env.channels[0].sent
	if len(sent) == 0 {
		t.Fatal("nothing sent")
	}
	return sent[len(sent)-1]
}

func TestInitializeAdvertisesCommands(t *testing.T) {
	env := newServerEnv()
	result, err := env.ls.initialize(nil, &protocol.InitializeParams{})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	res, ok := result.(protocol.InitializeResult)
	if !ok {
		t.Fatalf("unexpected result %T", result)
	}
	cmds := res.Capabilities.ExecuteCommandProvider
	if cmds == nil || len(cmds.Commands) != 2 || cmds.Commands[0] != CommandOpenPreview {
		t.Fatalf("unexpected commands %+v", cmds)
	}
	syncOpts, ok := res.Capabilities.TextDocumentSync.(*protocol.TextDocumentSyncOptions)
	if !ok || syncOpts.Change == nil || *syncOpts.Change != protocol.TextDocumentSyncKindFull {
		t.Fatalf("expected full sync, got %+v", res.Capabilities.TextDocumentSync)
	}
}

func TestOpeningAnimationShowsPreview(t *testing.T) {
	env := newServerEnv()
	env.open(t, plainURI, plainText)
	if len(env.channels) != 0 {
		t.Fatal("plain JSON must not open a preview")
	}

	env.open(t, animURI, animText)
	msg := env.last(t)
	if msg.Content != animText || !msg.IsValid || msg.FileName != "spin.json" {
		t.Fatalf("unexpected update %+v", msg)
	}
}

func TestChangeAndSaveRefreshActiveDocument(t *testing.T) {
	env := newServerEnv()
	env.open(t, animURI, animText)

	edited := `{"layers":[],"v":"5.6.0"}`
	err := env.ls.textDocumentDidChange(nil, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: animURI},
			Version:                2,
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: edited}},
	})
	if err != nil {
		t.Fatalf("didChange: %v", err)
	}
	if msg := env.last(t); msg.Content != edited {
		t.Fatalf("change not pushed: %+v", msg)
	}

	saved := `{"layers":[],"v":"5.7.0"}`
	err = env.ls.textDocumentDidSave(nil, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: animURI},
		Text:         &saved,
	})
	if err != nil {
		t.Fatalf("didSave: %v", err)
	}
	if msg := env.last(t); msg.Content != saved {
		t.Fatalf("save not pushed: %+v", msg)
	}
}

func TestExecuteCommands(t *testing.T) {
	env := newServerEnv()

	if _, err := env.ls.workspaceExecuteCommand(nil, &protocol.ExecuteCommandParams{Command: CommandOpenPreview}); err != nil {
		t.Fatalf("open without documents: %v", err)
	}
	if len(env.channels) != 0 {
		t.Fatal("no preview without an active document")
	}

	env.open(t, plainURI, plainText)
	env.ls.store.Open(protocol.TextDocumentItem{URI: animURI, LanguageID: "json", Text: animText})
	env.ls.store.Activate(plainURI)

	_, err := env.ls.workspaceExecuteCommand(nil, &protocol.ExecuteCommandParams{
		Command:   CommandOpenPreview,
		Arguments: []any{animURI},
	})
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	if msg := env.last(t); msg.FileName != "spin.json" {
		t.Fatalf("command target not previewed: %+v", msg)
	}

	if _, err := env.ls.workspaceExecuteCommand(nil, &protocol.ExecuteCommandParams{Command: CommandClosePreview}); err != nil {
		t.Fatalf("close preview: %v", err)
	}
	if !env.channels[0].closed {
		t.Fatal("close command should dispose the preview")
	}
	if _, ok := env.ls.registry.Current(); ok {
		t.Fatal("registry should be empty after close")
	}

	if _, err := env.ls.workspaceExecuteCommand(nil, &protocol.ExecuteCommandParams{Command: "lottie.bogus"}); err == nil {
		t.Fatal("unknown command should fail")
	}
	if _, err := env.ls.workspaceExecuteCommand(nil, &protocol.ExecuteCommandParams{
		Command:   CommandOpenPreview,
		Arguments: []any{42},
	}); err == nil {
		t.Fatal("non-string argument should fail")
	}
}

func TestShutdownClosesPreview(t *testing.T) {
	env := newServerEnv()
	env.open(t, animURI, animText)
	if err := env.ls.shutdown(nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !env.channels[0].closed {
		t.Fatal("shutdown should dispose the preview")
	}
}
