package host

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/neovim/go-client/nvim"
)

// bufferDocument is a Neovim buffer seen as a preview document. Text always
// reads the live buffer lines.
type bufferDocument struct {
	v    *nvim.Nvim
	buf  nvim.Buffer
	path string
	kind string
}

func loadBufferDocument(v *nvim.Nvim, buf nvim.Buffer) (*bufferDocument, error) {
	path, err := v.BufferName(buf)
	if err != nil {
		return nil, fmt.Errorf("buffer name: %w", err)
	}

	var kind string
	if err := v.Eval(fmt.Sprintf("getbufvar(%d, '&filetype')", int(buf)), &kind); err != nil {
		return nil, fmt.Errorf("buffer filetype: %w", err)
	}

	return &bufferDocument{v: v, buf: buf, path: path, kind: kind}, nil
}

func (d *bufferDocument) Key() string {
	return bufferKey(d.path, int(d.buf))
}

func (d *bufferDocument) Name() string {
	if d.path == "" {
		return fmt.Sprintf("[No Name %d]", int(d.buf))
	}
	return filepath.Base(d.path)
}

func (d *bufferDocument) Kind() string {
	return d.kind
}

func (d *bufferDocument) Text() (string, error) {
	lines, err := d.v.BufferLines(d.buf, 0, -1, true)
	if err != nil {
		return "", err
	}
	return string(bytes.Join(lines, []byte("\n"))), nil
}

// bufferKey identifies a buffer by its absolute path, or by number when the
// buffer has no name.
func bufferKey(path string, buf int) string {
	if strings.TrimSpace(path) == "" {
		return fmt.Sprintf("buffer://%d", buf)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}
