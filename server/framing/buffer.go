package framing

import "bytes"

// DefaultDelimiter terminates each frame on stream transports unless
// configured otherwise.
const DefaultDelimiter = "\r"

// Buffer accumulates raw bytes from a stream transport and splits them
// into delimiter-terminated frames. Bytes after the last delimiter stay
// pending until more data arrives; a missing delimiter is not an error,
// just an incomplete frame.
//
// A Buffer is owned by a single client's read pump and is not safe for
// concurrent use.
type Buffer struct {
	delimiter []byte
	pending   []byte
}

func NewBuffer(delimiter []byte) *Buffer {
	if len(delimiter) == 0 {
		delimiter = []byte(DefaultDelimiter)
	}

	return &Buffer{delimiter: delimiter}
}

// Append concatenates chunk to the pending bytes.
func (b *Buffer) Append(chunk []byte) {
	b.pending = append(b.pending, chunk...)
}

// Split consumes all complete frames from the pending bytes, in arrival
// order, and returns them. Each returned frame excludes the delimiter and
// is an independent copy. When no delimiter is present, Split returns nil
// and leaves pending untouched.
func (b *Buffer) Split() [][]byte {
	var frames [][]byte

	for {
		index := bytes.Index(b.pending, b.delimiter)
		if index < 0 {
			break
		}

		frame := make([]byte, index)
		copy(frame, b.pending[:index])
		frames = append(frames, frame)

		b.pending = b.pending[index+len(b.delimiter):]
	}

	return frames
}

// Pending returns the unconsumed remainder.
func (b *Buffer) Pending() []byte {
	return b.pending
}

// Empty discards any pending bytes. Used on manual reset only, never
// during normal frame processing.
func (b *Buffer) Empty() {
	b.pending = nil
}
