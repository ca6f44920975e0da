package httpclient

import "bytes"

// LineBuffer reassembles logical lines from arbitrary transport reads. The
// upstream may split one event across multiple reads or coalesce several
// into one, so a partial trailing line is carried over to the next Feed.
type LineBuffer struct {
	carry []byte
}

// Feed appends p to the buffered carry and returns every complete line now
// available, in order. Trailing CRs are stripped. Bytes after the final
// newline stay buffered.
func (b *LineBuffer) Feed(p []byte) []string {
	b.carry = append(b.carry, p...)

	var lines []string
	for {
		idx := bytes.IndexByte(b.carry, '\n')
		if idx < 0 {
			return lines
		}
		line := b.carry[:idx]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		b.carry = b.carry[idx+1:]
	}
}

// Flush returns any unterminated remainder and resets the buffer. Called
// once the transport closes.
func (b *LineBuffer) Flush() string {
	line := b.carry
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	out := string(line)
	b.carry = nil
	return out
}
