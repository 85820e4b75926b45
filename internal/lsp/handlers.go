package lsp

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (ls *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	ls.remember(context)

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities := ls.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandOpenPreview, CommandClosePreview},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (ls *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	ls.remember(context)
	ls.logger.Info("client initialized")
	return nil
}

func (ls *Server) shutdown(context *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return ls.router.ClosePreview()
}

func (ls *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	ls.remember(context)
	doc := ls.store.Open(params.TextDocument)
	return ls.router.ActiveEditorChanged(doc)
}

func (ls *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	doc, err := ls.store.Apply(params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges)
	if err != nil {
		return err
	}
	return ls.router.DocumentChanged(doc)
}

func (ls *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	doc, ok := ls.store.Save(params.TextDocument.URI, params.Text)
	if !ok {
		return nil
	}
	return ls.router.DocumentSaved(doc)
}

func (ls *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	ls.store.Close(params.TextDocument.URI)
	return nil
}

func (ls *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	ls.remember(context)
	switch params.Command {
	case CommandOpenPreview:
		// An optional first argument names the document to preview.
		if len(params.Arguments) > 0 {
			uri, ok := params.Arguments[0].(string)
			if !ok {
				return nil, fmt.Errorf("%s: document argument must be a URI string", CommandOpenPreview)
			}
			if !ls.store.Activate(uri) {
				ls.logger.Warn("preview target is not open", "uri", uri)
			}
		}
		return nil, ls.router.OpenPreview()
	case CommandClosePreview:
		return nil, ls.router.ClosePreview()
	default:
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
}
