// Package scanner supplies decoded QR text to a scan session. Capture devices
// differ (keyboard-wedge readers, camera callbacks, image files) so each is a
// Source the session pulls from.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync"
)

// ErrUnreadable means one capture could not be decoded; the source can still be read
var ErrUnreadable = errors.New("no readable QR code")

// Source yields decoded text one scan at a time. Next returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// All adapts a source to a range-over-func iterator. Unreadable captures are
// yielded as errors and reading continues; io.EOF ends the sequence and any
// other error is yielded once before it ends.
func All(ctx context.Context, src Source) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			text, err := src.Next(ctx)
			switch {
			case err == nil:
				if !yield(text, nil) {
					return
				}
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, ErrUnreadable):
				if !yield("", err) {
					return
				}
			default:
				yield("", err)
				return
			}
		}
	}
}

// MaxLineBytes bounds one LineSource line. Longer lines are discarded and
// reported as ErrUnreadable.
const MaxLineBytes = 64 * 1024

// LineSource reads one decoded code per line, as produced by keyboard-wedge
// scanners or piped input. Blank lines are skipped.
type LineSource struct {
	reader *bufio.Reader
}

// NewLineSource reads lines from r
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{reader: bufio.NewReaderSize(r, 4096)}
}

// Next returns the next non-blank line
func (s *LineSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line, tooLong, err := s.readLine()
		if tooLong {
			return "", fmt.Errorf("%w: line longer than %d bytes", ErrUnreadable, MaxLineBytes)
		}
		if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("read scanner input: %w", err)
		}
	}
}

// readLine reads through the next newline. Past MaxLineBytes the rest of the
// line is drained without being kept.
func (s *LineSource) readLine() (string, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := s.reader.ReadSlice('\n')
		content := bytes.TrimSuffix(chunk, []byte{'\n'})
		// one extra byte leaves room for a CR before the newline
		if !tooLong {
			if len(buf)+len(content) > MaxLineBytes+1 {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, content...)
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		line := strings.TrimSuffix(string(buf), "\r")
		if len(line) > MaxLineBytes {
			return "", true, err
		}
		return line, tooLong, err
	}
}

// ChannelSource adapts callback-style capture (a camera library invoking a
// function per decode) to a pulled Source
type ChannelSource struct {
	ch     chan string
	done   chan struct{}
	closed sync.Once
}

// NewChannelSource creates a source buffering up to buffer pushed codes
func NewChannelSource(buffer int) *ChannelSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSource{
		ch:   make(chan string, buffer),
		done: make(chan struct{}),
	}
}

// Push hands a decoded text to the session. It blocks while the buffer is full
// and returns false once the source is closed or ctx is done.
func (s *ChannelSource) Push(ctx context.Context, text string) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.ch <- text:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close stops the source; buffered codes are still delivered before io.EOF
func (s *ChannelSource) Close() {
	s.closed.Do(func() { close(s.done) })
}

// Next waits for the next pushed code
func (s *ChannelSource) Next(ctx context.Context) (string, error) {
	select {
	case text := <-s.ch:
		return text, nil
	default:
	}

	select {
	case text := <-s.ch:
		return text, nil
	case <-s.done:
		select {
		case text := <-s.ch:
			return text, nil
		default:
			return "", io.EOF
		}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SliceSource replays a fixed list of texts
type SliceSource struct {
	texts []string
	pos   int
}

// NewSliceSource creates a source over texts
func NewSliceSource(texts ...string) *SliceSource {
	return &SliceSource{texts: texts}
}

// Next returns the next text in order
func (s *SliceSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.texts) {
		return "", io.EOF
	}
	text := s.texts[s.pos]
	s.pos++
	return text, nil
}
