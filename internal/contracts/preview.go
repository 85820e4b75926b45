package contracts

import "encoding/json"

const (
	// MessageTypeUpdate pushes the current document text to the browser.
	MessageTypeUpdate = "update"
	// MessageTypeReady is sent by the browser once its socket is listening.
	MessageTypeReady = "ready"
	// MessageTypeError carries a browser-side failure to show the user.
	MessageTypeError = "error"
)

// CloseReplaced is the WebSocket close code sent to a page whose connection
// was taken over by a newer page. A page closed with it stays disconnected.
const CloseReplaced = 4000

// IncomingMessage is the minimal envelope used to route browser messages.
type IncomingMessage struct {
	Type string `json:"type"`
}

// UpdateMessage carries the raw document text to the browser. Invalid
// documents are sent too so the page can show its own "not a valid file" view.
type UpdateMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	IsValid  bool   `json:"isValid"`
	FileName string `json:"fileName"`
	// Info is the pre-rendered HTML of the document info panel.
	Info string `json:"info,omitempty"`
}

// ErrorMessage reports a failure inside the browser page.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Feedback is a decoded browser message.
type Feedback struct {
	Type    string
	Message string
}

// DecodeFeedback parses a raw browser frame. It reports false for frames that
// are not JSON or whose type is not one the host understands.
func DecodeFeedback(raw []byte) (Feedback, bool) {
	var envelope IncomingMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Feedback{}, false
	}

	switch envelope.Type {
	case MessageTypeReady:
		return Feedback{Type: MessageTypeReady}, true
	case MessageTypeError:
		var msg ErrorMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Feedback{}, false
		}
		return Feedback{Type: MessageTypeError, Message: msg.Message}, true
	default:
		return Feedback{}, false
	}
}
