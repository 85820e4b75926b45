package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/util"
	alertcallouts "github.com/zmtcreative/gm-alert-callouts"

	"go-live-lottie/internal/contracts"
	"go-live-lottie/internal/lottie"
)

const (
	highlightStyle = "github"
	// excerptLines and excerptBytes bound the source shown for an invalid
	// document. Minified exports are often a single very long line.
	excerptLines = 20
	excerptBytes = 2 << 10
)

// Renderer builds the browser page shell and the document info panel.
// The info panel is written as Markdown and converted with Goldmark; raw HTML
// in the input is never passed through.
type Renderer struct {
	md  goldmark.Markdown
	css string
}

//go:embed page.html
var pageTemplate string

// ShellParams are the per-load values substituted into the page shell.
type ShellParams struct {
	Title string
	Nonce string
	CSP   string
}

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			alertcallouts.AlertCallouts,
			extension.Table,
			highlighting.NewHighlighting(
				highlighting.WithStyle(highlightStyle),
				highlighting.WithWrapperRenderer(renderExcerptWrapper),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
	)
	return &Renderer{md: md, css: highlightCSS()}
}

// highlightCSS returns the stylesheet for class-based highlighting.
func highlightCSS() string {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(highlightStyle)); err != nil {
		return ""
	}
	return buf.String()
}

// RenderShell returns the HTML page the browser loads. Document content is
// never part of the shell; it arrives over the WebSocket.
func (r *Renderer) RenderShell(p ShellParams) string {
	return strings.NewReplacer(
		"{{TITLE}}", html.EscapeString(p.Title),
		"{{NONCE}}", html.EscapeString(p.Nonce),
		"{{CSP}}", html.EscapeString(p.CSP),
		"{{HIGHLIGHT_CSS}}", r.css,
		"{{CLOSE_REPLACED}}", strconv.Itoa(contracts.CloseReplaced),
	).Replace(pageTemplate)
}

// RenderInfo renders the info panel for a document.
func (r *Renderer) RenderInfo(fileName string, text string) (string, error) {
	var source string
	if err := lottie.Diagnose(text); err != nil {
		source = invalidInfo(fileName, text, err)
	} else {
		meta, _ := lottie.ReadMetadata(text)
		source = validInfo(fileName, meta)
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render info: %w", err)
	}
	return buf.String(), nil
}

func validInfo(fileName string, meta lottie.Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", escapeMarkdown(fileName))
	b.WriteString("| Property | Value |\n| --- | --- |\n")
	fmt.Fprintf(&b, "| Version | %s |\n", orDash(escapeMarkdown(meta.Version)))
	fmt.Fprintf(&b, "| Frame rate | %s |\n", FormatFrameRate(meta.FrameRate))
	fmt.Fprintf(&b, "| Duration | %s |\n", FormatDuration(meta))
	fmt.Fprintf(&b, "| Size | %s × %s |\n", FormatNumber(meta.Width), FormatNumber(meta.Height))

	if !meta.DurationKnown {
		b.WriteString("\n> [!WARNING]\n")
		b.WriteString("> The frame rate (`fr`) or out point (`op`) is missing or not positive, so the duration is unknown.\n")
	}
	return b.String()
}

func invalidInfo(fileName string, text string, reason error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n\n", escapeMarkdown(fileName))
	b.WriteString("> [!CAUTION]\n")
	b.WriteString("> Not a valid Lottie file.\n")
	fmt.Fprintf(&b, "> %s\n", escapeMarkdown(reason.Error()))

	excerpt := firstLines(text, excerptLines, excerptBytes)
	if strings.TrimSpace(excerpt) == "" {
		return b.String()
	}
	fence := codeFence(excerpt)
	fmt.Fprintf(&b, "\n%sjson\n%s\n%s\n", fence, excerpt, fence)
	return b.String()
}

// FormatFrameRate renders fr, or "-" when the document carries none.
func FormatFrameRate(fr float64) string {
	if fr <= 0 {
		return "-"
	}
	return FormatNumber(fr) + " fps"
}

// FormatDuration renders the duration in seconds or "unknown".
func FormatDuration(meta lottie.Metadata) string {
	if !meta.DurationKnown {
		return "unknown"
	}
	return strconv.FormatFloat(meta.Duration, 'f', 2, 64) + " s"
}

func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	`*`, `\*`,
	`_`, `\_`,
	`[`, `\[`,
	`]`, `\]`,
	`<`, `\<`,
	`>`, `\>`,
	`|`, `\|`,
	`#`, `\#`,
	`&`, `\&`,
	"\n", " ",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// firstLines returns at most n lines and at most maxBytes bytes of text,
// cut on a rune boundary. A truncated result ends with an ellipsis line.
func firstLines(text string, n int, maxBytes int) string {
	truncated := false
	if len(text) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
		truncated = true
	}
	lines := strings.SplitN(text, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
		truncated = true
	}
	if truncated {
		lines = append(lines, "…")
	}
	return strings.Join(lines, "\n")
}

// codeFence returns a backtick fence longer than any backtick run in s.
func codeFence(s string) string {
	longest, run := 0, 0
	for _, c := range s {
		if c == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

// renderExcerptWrapper wraps highlighted excerpts so the page can style them.
func renderExcerptWrapper(w util.BufWriter, _ highlighting.CodeBlockContext, entering bool) {
	if entering {
		_, _ = w.WriteString(`<div class="excerpt">`)
		return
	}
	_, _ = w.WriteString("</div>")
}
