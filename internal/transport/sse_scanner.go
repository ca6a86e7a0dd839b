package transport

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// SSEEvent is a single Server-Sent Event parsed from an SSE stream.
type SSEEvent struct {
	// Type is the "event:" field; empty means the default "message" type.
	Type string
	// Data joins the event's "data:" lines with newlines.
	Data string
	// ID is the last event ID in effect when the event was dispatched.
	ID string
}

// SSEScanner reads Server-Sent Events from an io.Reader. Events are
// delimited by blank lines; comment lines and unknown fields are ignored.
// The "id" and "retry" fields are tracked across events.
type SSEScanner struct {
	reader  *bufio.Reader
	current SSEEvent
	lastID  string
	retry   time.Duration
	err     error
}

// NewSSEScanner creates a scanner that reads SSE events from reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	return &SSEScanner{
		reader: bufio.NewReaderSize(reader, 64*1024),
	}
}

// Next advances to the next event. Returns false when the stream ends or
// an error occurs; call Err to tell the two apart.
func (s *SSEScanner) Next() bool {
	if s.err != nil {
		return false
	}
	s.current = SSEEvent{}

	var dataLines []string
	var eventType string
	hasData := false

	dispatch := func() {
		s.current = SSEEvent{
			Type: eventType,
			Data: strings.Join(dataLines, "\n"),
			ID:   s.lastID,
		}
	}

	for {
		line, err := s.reader.ReadString('\n')

		if err != nil && line == "" {
			// An unterminated event at EOF is discarded, as browsers do.
			s.err = err
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				dispatch()
				return true
			}
			eventType = ""
			if err != nil {
				s.err = err
				return false
			}
			continue
		}

		if err != nil {
			// Partial last line without newline: also discarded.
			s.err = err
			return false
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field = line
			value = ""
		} else {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 && isDigits(value) {
				s.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Event returns the most recently parsed event.
func (s *SSEScanner) Event() SSEEvent { return s.current }

// LastEventID returns the last "id:" value seen on the stream.
func (s *SSEScanner) LastEventID() string { return s.lastID }

// Retry returns the last "retry:" value, or 0 if the server sent none.
func (s *SSEScanner) Retry() time.Duration { return s.retry }

// Err returns the first error encountered during scanning. Returns nil if
// scanning ended due to a clean EOF.
func (s *SSEScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
