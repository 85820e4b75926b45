package preview

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"go-live-lottie/internal/contracts"
)

type fakeDocument struct {
	key  string
	name string
	kind string

	mu   sync.Mutex
	text string
	err  error
}

func newFakeDocument(key, text string) *fakeDocument {
	return &fakeDocument{key: key, name: key, kind: "json", text: text}
}

func (d *fakeDocument) Key() string  { return d.key }
func (d *fakeDocument) Name() string { return d.name }
func (d *fakeDocument) Kind() string { return d.kind }

func (d *fakeDocument) Text() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text, d.err
}

func (d *fakeDocument) set(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = text
}

func (d *fakeDocument) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type fakeChannel struct {
	mu          sync.Mutex
	sent        []contracts.UpdateMessage
	subscribers map[int]func(contracts.Feedback)
	nextID      int
	title       string
	reveals     int
	closes      int
	// onClose runs inside Close, before Close returns.
	onClose     func()
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{subscribers: map[int]func(contracts.Feedback){}}
}

func (c *fakeChannel) Send(msg contracts.UpdateMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Subscribe(fn func(contracts.Feedback)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *fakeChannel) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = title
}

func (c *fakeChannel) Reveal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reveals++
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	c.closes++
	hook := c.onClose
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (c *fakeChannel) emit(fb contracts.Feedback) {
	c.mu.Lock()
	subs := make([]func(contracts.Feedback), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(fb)
	}
}

func (c *fakeChannel) messages() []contracts.UpdateMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]contracts.UpdateMessage(nil), c.sent...)
}

func (c *fakeChannel) subscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *fakeNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

// prefixClassifier accepts any text starting with "{".
type prefixClassifier struct{}

func (prefixClassifier) Classify(text string) bool {
	return len(text) > 0 && text[0] == '{'
}

var errOpen = errors.New("listen: address in use")

type harness struct {
	registry *Registry
	notifier *fakeNotifier
	channels []*fakeChannel
	failOpen bool
}

func newHarness() *harness {
	h := &harness{notifier: &fakeNotifier{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.registry = NewRegistry(func() (Channel, error) {
		if h.failOpen {
			return nil, errOpen
		}
		ch := newFakeChannel()
		h.channels = append(h.channels, ch)
		return ch, nil
	}, prefixClassifier{}, h.notifier, logger)
	return h
}
