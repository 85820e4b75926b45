package app

import (
	"log/slog"

	"go-live-lottie/internal/contracts"
	"go-live-lottie/internal/preview"
	"go-live-lottie/internal/render"
	httptransport "go-live-lottie/internal/transport/http"
)

// SandboxOptions configures the browser sandboxes opened for previews.
type SandboxOptions struct {
	Addr           string
	AssetsDir      string
	OpenBrowser    bool
	BrowserCommand string
}

// LivePreview is a coordinator between info rendering and HTTP delivery.
// It is the preview.Channel of one surface.
type LivePreview struct {
	renderer *render.Renderer
	server   *httptransport.PreviewServer
	notifier preview.Notifier
	logger   *slog.Logger
}

// NewSandboxFactory returns a factory that starts one preview server per
// surface and announces its URL through notifier.
func NewSandboxFactory(opts SandboxOptions, notifier preview.Notifier, logger *slog.Logger) preview.ChannelFactory {
	renderer := render.NewRenderer()
	return func() (preview.Channel, error) {
		server := httptransport.NewPreviewServer(httptransport.Options{
			Addr:           opts.Addr,
			AssetsDir:      opts.AssetsDir,
			OpenBrowser:    opts.OpenBrowser,
			BrowserCommand: opts.BrowserCommand,
			Logger:         logger,
		}, renderer.RenderShell)
		if err := server.Start(); err != nil {
			return nil, err
		}

		lp := &LivePreview{renderer: renderer, server: server, notifier: notifier, logger: logger}
		if err := lp.Reveal(); err != nil {
			logger.Warn("open browser", "error", err)
		}
		return lp, nil
	}
}

func (s *LivePreview) URL() string {
	return s.server.URL()
}

// Send attaches the rendered info panel and forwards msg to the browser.
func (s *LivePreview) Send(msg contracts.UpdateMessage) error {
	info, err := s.renderer.RenderInfo(msg.FileName, msg.Content)
	if err != nil {
		s.logger.Warn("render info panel", "error", err)
	}
	msg.Info = info
	return s.server.Send(msg)
}

func (s *LivePreview) Subscribe(fn func(contracts.Feedback)) func() {
	return s.server.Subscribe(fn)
}

func (s *LivePreview) SetTitle(title string) {
	s.server.SetTitle(title)
}

// Reveal tells the user where the preview lives and opens the browser when
// no page is attached. An attached page, or one still loading from an
// earlier reveal, is left alone.
func (s *LivePreview) Reveal() error {
	started, err := s.server.Reveal()
	if started {
		s.notifier.Info("Lottie Preview: " + s.server.URL())
	}
	return err
}

func (s *LivePreview) Close() error {
	return s.server.Close()
}
