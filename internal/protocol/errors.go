package protocol

import "fmt"

// Describe formats an error event for the log feed.
func (e *ChatEvent) Describe() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	if e.Code != nil {
		return fmt.Sprintf("%s (code %d)", msg, *e.Code)
	}
	return msg
}
