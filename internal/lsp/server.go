// Package lsp exposes the preview through any LSP client. Open documents
// live in a Store and the most recently opened or targeted one is treated
// as the active editor.
package lsp

import (
	"log/slog"
	"sync"

	"go-live-lottie/internal/app"
	"go-live-lottie/internal/config"
	"go-live-lottie/internal/lottie"
	"go-live-lottie/internal/preview"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const (
	lsName = "go-live-lottie"

	CommandOpenPreview  = "lottie.openPreview"
	CommandClosePreview = "lottie.closePreview"
)

var version = "0.1.0"

type Server struct {
	handler  *protocol.Handler
	store    *Store
	router   *app.Router
	registry *preview.Registry
	logger   *slog.Logger

	mu     sync.Mutex
	notify glsp.NotifyFunc
}

// New wires the preview router for cfg behind an LSP handler.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	ls := &Server{store: NewStore(), logger: logger}

	sandboxes := app.NewSandboxFactory(app.SandboxOptions{
		Addr:           cfg.Preview.Addr,
		AssetsDir:      cfg.Preview.AssetsDir,
		OpenBrowser:    cfg.Preview.OpenBrowser,
		BrowserCommand: cfg.Preview.BrowserCommand,
	}, ls, logger)
	return ls.wire(sandboxes, cfg.Detect.Filetypes)
}

func (ls *Server) wire(sandboxes preview.ChannelFactory, kinds []string) *Server {
	classifier := lottie.Classifier{}
	ls.registry = preview.NewRegistry(sandboxes, classifier, ls, ls.logger)
	ls.router = app.NewRouter(ls.registry, classifier, ls, ls, kinds, ls.logger)

	ls.handler = &protocol.Handler{
		Initialize:              ls.initialize,
		Initialized:             ls.initialized,
		Shutdown:                ls.shutdown,
		SetTrace:                ls.setTrace,
		TextDocumentDidOpen:     ls.textDocumentDidOpen,
		TextDocumentDidChange:   ls.textDocumentDidChange,
		TextDocumentDidSave:     ls.textDocumentDidSave,
		TextDocumentDidClose:    ls.textDocumentDidClose,
		WorkspaceExecuteCommand: ls.workspaceExecuteCommand,
	}
	return ls
}

// RunStdio serves the protocol on stdin/stdout until the client exits.
func (ls *Server) RunStdio() error {
	return server.NewServer(ls.handler, lsName, false).RunStdio()
}

// ActiveDocument implements app.Workspace.
func (ls *Server) ActiveDocument() (preview.Document, bool, error) {
	doc, ok := ls.store.Active()
	if !ok {
		return nil, false, nil
	}
	return doc, true, nil
}

func (ls *Server) Info(msg string) {
	ls.showMessage(protocol.MessageTypeInfo, msg)
}

func (ls *Server) Error(msg string) {
	ls.showMessage(protocol.MessageTypeError, msg)
}

func (ls *Server) showMessage(kind protocol.MessageType, msg string) {
	ls.mu.Lock()
	notify := ls.notify
	ls.mu.Unlock()

	if notify == nil {
		ls.logger.Info("message before initialize", "message", msg)
		return
	}
	notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
		Type:    kind,
		Message: msg,
	})
}

// remember keeps the connection's notify function for messages that
// originate outside a request, such as page feedback.
func (ls *Server) remember(context *glsp.Context) {
	if context == nil || context.Notify == nil {
		return
	}
	ls.mu.Lock()
	ls.notify = context.Notify
	ls.mu.Unlock()
}
