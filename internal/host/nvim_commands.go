package host

import (
	"log/slog"
	"sync"

	"go-live-lottie/internal/app"
	"go-live-lottie/internal/config"
	"go-live-lottie/internal/lottie"
	"go-live-lottie/internal/preview"

	"github.com/neovim/go-client/nvim"
	"github.com/neovim/go-client/nvim/plugin"
)

// bufferEval passes the autocmd buffer number to the handlers.
const bufferEval = "str2nr(expand('<abuf>'))"

// Commands is a state container for Neovim command and autocmd handlers.
// It adapts Neovim to the router's editor model: the current buffer is the
// active editor and autocmds are the document events.
type Commands struct {
	router   *app.Router
	registry *preview.Registry
	logger   *slog.Logger

	mu sync.Mutex
	nv *nvim.Nvim
}

// NewCommands wires a router, registry and browser sandbox factory for cfg.
func NewCommands(cfg *config.Config, logger *slog.Logger) *Commands {
	c := &Commands{logger: logger}

	sandboxes := app.NewSandboxFactory(app.SandboxOptions{
		Addr:           cfg.Preview.Addr,
		AssetsDir:      cfg.Preview.AssetsDir,
		OpenBrowser:    cfg.Preview.OpenBrowser,
		BrowserCommand: cfg.Preview.BrowserCommand,
	}, c, logger)

	classifier := lottie.Classifier{}
	c.registry = preview.NewRegistry(sandboxes, classifier, c, logger)
	c.router = app.NewRouter(c.registry, classifier, c, c, cfg.Detect.Filetypes, logger)
	return c
}

// Register registers Neovim command/autocmd handlers.
func Register(p *plugin.Plugin, cfg *config.Config, logger *slog.Logger) error {
	commands := NewCommands(cfg, logger)

	p.Handle("poll", func() (string, error) {
		return "ok", nil
	})

	p.HandleCommand(&plugin.CommandOptions{
		Name: "LottiePreview",
	}, commands.LottiePreview)

	p.HandleCommand(&plugin.CommandOptions{
		Name: "LottiePreviewClose",
	}, commands.LottiePreviewClose)

	p.HandleAutocmd(&plugin.AutocmdOptions{
		Event:   "BufEnter",
		Pattern: "*",
		Eval:    bufferEval,
	}, commands.onBufEnter)

	p.HandleAutocmd(&plugin.AutocmdOptions{
		Event:   "BufWritePost",
		Pattern: "*",
		Eval:    bufferEval,
	}, commands.onBufWritePost)

	p.HandleAutocmd(&plugin.AutocmdOptions{
		Event:   "TextChanged,TextChangedI",
		Pattern: "*",
		Eval:    bufferEval,
	}, commands.onTextChanged)

	p.HandleAutocmd(&plugin.AutocmdOptions{
		Event:   "VimLeavePre",
		Pattern: "*",
	}, commands.onVimLeavePre)

	return nil
}

func (c *Commands) LottiePreview(v *nvim.Nvim) error {
	c.attach(v)
	return c.router.OpenPreview()
}

func (c *Commands) LottiePreviewClose(v *nvim.Nvim) error {
	c.attach(v)
	return c.router.ClosePreview()
}

func (c *Commands) onBufEnter(v *nvim.Nvim, buf int) error {
	c.attach(v)
	doc, err := loadBufferDocument(v, nvim.Buffer(buf))
	if err != nil {
		return err
	}
	return c.router.ActiveEditorChanged(doc)
}

func (c *Commands) onBufWritePost(v *nvim.Nvim, buf int) error {
	if !c.previewing() {
		return nil
	}
	c.attach(v)
	doc, err := loadBufferDocument(v, nvim.Buffer(buf))
	if err != nil {
		return err
	}
	return c.router.DocumentSaved(doc)
}

func (c *Commands) onTextChanged(v *nvim.Nvim, buf int) error {
	if !c.previewing() {
		return nil
	}
	c.attach(v)
	doc, err := loadBufferDocument(v, nvim.Buffer(buf))
	if err != nil {
		return err
	}
	return c.router.DocumentChanged(doc)
}

func (c *Commands) onVimLeavePre(v *nvim.Nvim) error {
	return c.router.ClosePreview()
}

// previewing skips buffer lookups for every keystroke while no preview is open.
func (c *Commands) previewing() bool {
	_, ok := c.registry.Current()
	return ok
}

func (c *Commands) attach(v *nvim.Nvim) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nv = v
}

func (c *Commands) client() *nvim.Nvim {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nv
}

// ActiveDocument returns the current buffer.
func (c *Commands) ActiveDocument() (preview.Document, bool, error) {
	v := c.client()
	if v == nil {
		return nil, false, nil
	}
	buf, err := v.CurrentBuffer()
	if err != nil {
		return nil, false, err
	}
	doc, err := loadBufferDocument(v, buf)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Info shows msg with vim.notify at INFO level.
func (c *Commands) Info(msg string) {
	c.notify(msg, "INFO")
}

// Error shows msg with vim.notify at ERROR level.
func (c *Commands) Error(msg string) {
	c.notify(msg, "ERROR")
}

func (c *Commands) notify(msg string, level string) {
	v := c.client()
	if v == nil {
		c.logger.Info("notification before attach", "message", msg)
		return
	}
	// Feedback arrives on socket goroutines; schedule the call on Neovim's loop.
	err := v.ExecLua(`local msg, level = ...
vim.schedule(function() vim.notify(msg, vim.log.levels[level]) end)`, nil, msg, level)
	if err != nil {
		c.logger.Warn("notify", "error", err, "message", msg)
	}
}
