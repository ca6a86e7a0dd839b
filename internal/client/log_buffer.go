package client

// LogBuffer is a fixed-capacity ring of log lines. When full, appending
// evicts the oldest line.
type LogBuffer struct {
	lines []string
	start int
	size  int
}

// NewLogBuffer creates a buffer holding at most capacity lines.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &LogBuffer{lines: make([]string, capacity)}
}

// Append adds a line, evicting the oldest one when the buffer is full.
func (b *LogBuffer) Append(line string) {
	if b.size < len(b.lines) {
		b.lines[(b.start+b.size)%len(b.lines)] = line
		b.size++
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % len(b.lines)
}

// Len returns the number of lines held.
func (b *LogBuffer) Len() int { return b.size }

// Cap returns the buffer capacity.
func (b *LogBuffer) Cap() int { return len(b.lines) }

// Lines returns the lines oldest first.
func (b *LogBuffer) Lines() []string {
	out := make([]string, b.size)
	for i := range b.size {
		out[i] = b.lines[(b.start+i)%len(b.lines)]
	}
	return out
}

// Newest returns up to n lines, newest first.
func (b *LogBuffer) Newest(n int) []string {
	if n > b.size || n < 0 {
		n = b.size
	}
	out := make([]string, n)
	for i := range n {
		out[i] = b.lines[(b.start+b.size-1-i)%len(b.lines)]
	}
	return out
}

// Last returns the most recent line, or "" when empty.
func (b *LogBuffer) Last() string {
	if b.size == 0 {
		return ""
	}
	return b.lines[(b.start+b.size-1)%len(b.lines)]
}
