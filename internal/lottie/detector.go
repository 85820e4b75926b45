// Package lottie recognises Lottie animation documents and extracts their
// headline metadata. Every function here is a pure function of its input.
package lottie

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrMissingLayers means the document has no "layers" array.
	ErrMissingLayers = errors.New(`missing "layers" array`)
	// ErrMissingMarkers means neither "v" nor a numeric "op" is present.
	ErrMissingMarkers = errors.New(`missing version ("v") and numeric out point ("op")`)
)

// Metadata summarises the top-level header of a Lottie document.
type Metadata struct {
	Version   string  `json:"version"`
	FrameRate float64 `json:"frameRate"`
	// Duration is in seconds and is only meaningful when DurationKnown is set.
	Duration      float64 `json:"duration"`
	DurationKnown bool    `json:"durationKnown"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
}

// header holds the raw top-level members the detector looks at.
type header map[string]json.RawMessage

func parseHeader(text string) (header, error) {
	var h header
	if err := json.Unmarshal([]byte(text), &h); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	// "null" unmarshals into a nil map without error.
	if h == nil {
		return nil, errors.New("parse: document is null")
	}
	return h, nil
}

// IsLottieJSON reports whether text looks like a Lottie animation.
//
// A document qualifies when it is a JSON object with a "layers" array and
// either a version marker ("v") or a numeric out point ("op").
func IsLottieJSON(text string) bool {
	return Diagnose(text) == nil
}

// Diagnose explains why text is not a Lottie document. It returns nil for
// documents IsLottieJSON accepts.
func Diagnose(text string) error {
	h, err := parseHeader(text)
	if err != nil {
		return err
	}
	return h.check()
}

func (h header) check() error {
	if !h.isArray("layers") {
		return ErrMissingLayers
	}
	_, hasVersion := h["v"]
	_, hasOutPoint := h.number("op")
	if !hasVersion && !hasOutPoint {
		return ErrMissingMarkers
	}
	return nil
}

func (h header) isArray(key string) bool {
	raw, ok := h[key]
	if !ok {
		return false
	}
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func (h header) number(key string) (float64, bool) {
	raw, ok := h[key]
	if !ok {
		return 0, false
	}
	var f *float64
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return 0, false
	}
	return *f, true
}

func (h header) version() string {
	raw, ok := h["v"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if f, ok := h.number("v"); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// ReadMetadata returns the header metadata of text, or false when text is not
// a Lottie document.
//
// A missing in point ("ip") counts as frame 0. When the frame rate is absent,
// not a number, or not positive, or the out point is missing, the duration is
// reported as unknown instead of a non-finite value.
func ReadMetadata(text string) (Metadata, bool) {
	h, err := parseHeader(text)
	if err != nil || h.check() != nil {
		return Metadata{}, false
	}

	meta := Metadata{Version: h.version()}
	meta.Width, _ = h.number("w")
	meta.Height, _ = h.number("h")

	frameRate, hasFrameRate := h.number("fr")
	if hasFrameRate {
		meta.FrameRate = frameRate
	}

	inPoint, _ := h.number("ip")
	outPoint, hasOutPoint := h.number("op")
	if hasFrameRate && frameRate > 0 && hasOutPoint {
		meta.Duration = (outPoint - inPoint) / frameRate
		meta.DurationKnown = true
	}

	return meta, true
}

// Classifier adapts the package functions to the preview layer.
type Classifier struct{}

// Classify reports whether text is a Lottie document.
func (Classifier) Classify(text string) bool {
	return IsLottieJSON(text)
}
