// Package wire implements the null-terminated message framing shared by
// every channel in the system: master→worker control, worker→broker stats
// and query responses, broker→client replies. There is exactly one
// Reader/Writer pair; every component imports this package rather than
// rolling its own socket plumbing.
//
// A message is a byte string followed by a single NUL byte. Three
// sentinel messages carry protocol meaning rather than payload:
//
//   - Ready   marks the end of a logical response.
//   - Invalid marks command rejection.
//   - Done    (the empty message) marks the end of an input batch.
//
// The wire format is otherwise payload-agnostic: callers built on top of
// this package (internal/shard, internal/broker, ...) decide how to
// interpret the bytes between NULs.
package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Sentinel message bodies. These are sent as ordinary framed messages;
// recipients recognize them by exact byte comparison after unframing.
const (
	Ready   = "READY"
	Invalid = "INVALID"
	Done    = ""
)

// DefaultBufferSize bounds the chunk size used by Reader's underlying
// refills, independent of how large a single message may be. It mirrors
// the buffer_size configured on the command line in the original system
// (master -b, broker -b).
const DefaultBufferSize = 4096

// Reader reads a stream of NUL-delimited messages from an underlying
// io.Reader, buffering partial reads across calls the way the original
// pipe framer buffers a partial tail across refills — but backed by a
// bufio.Reader instead of a fixed array with manual memmove.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for framed reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, DefaultBufferSize)}
}

// ReadMessage reads and returns the next NUL-terminated message, with the
// trailing NUL stripped. It blocks until a full message is available or
// the underlying reader returns an error (including io.EOF).
func (r *Reader) ReadMessage() (string, error) {
	data, err := r.br.ReadString(0)
	if err != nil {
		return "", err
	}
	return data[:len(data)-1], nil
}

// ReadUntil reads messages until one equal to sentinel is seen (the
// sentinel itself is consumed but not returned), accumulating every
// other message it saw along the way. This is the Go equivalent of the
// original's "read until READY/DONE" loops in w_master_phase and the
// broker's statistics handler.
func (r *Reader) ReadUntil(sentinel string) ([]string, error) {
	var messages []string
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return messages, err
		}
		if msg == sentinel {
			return messages, nil
		}
		messages = append(messages, msg)
	}
}

// Writer writes NUL-delimited messages to an underlying io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for framed writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage writes payload followed by a single NUL byte.
func (w *Writer) WriteMessage(payload string) error {
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, 0)

	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("wire: write message: %w", err)
	}
	return nil
}

// WriteLine is the line-oriented convenience writer: it frames
// payload + "\n" as one message, matching msg_write_line in the original.
func (w *Writer) WriteLine(line string) error {
	return w.WriteMessage(line + "\n")
}

// WriteDone writes the empty-message DONE sentinel, marking the end of
// an input batch (e.g. the country list sent to a worker at bootstrap).
func (w *Writer) WriteDone() error {
	return w.WriteMessage(Done)
}

// WriteReady writes the READY sentinel, marking the end of a response.
func (w *Writer) WriteReady() error {
	return w.WriteMessage(Ready)
}

// WriteInvalid writes the INVALID sentinel, marking command rejection.
// Callers write Invalid then Ready, per §4.5: a malformed-command reply
// is "...\0INVALID\0READY\0".
func (w *Writer) WriteInvalid() error {
	return w.WriteMessage(Invalid)
}

// Response collects the framed messages of a worker's reply, classifying
// it as the broker's fan-out merge logic needs: was it well-formed, and
// what lines (if any) preceded the terminal sentinel.
type Response struct {
	Lines   []string
	Invalid bool
}

// ReadResponse reads messages until READY, recognizing a preceding
// INVALID sentinel. A bare READY with no preceding content yields a
// Response with no Lines and Invalid == false — one reply, empty body,
// never a protocol error (§4.5, §9).
func ReadResponse(r *Reader) (Response, error) {
	var resp Response
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return resp, err
		}
		switch msg {
		case Ready:
			return resp, nil
		case Invalid:
			resp.Invalid = true
		default:
			resp.Lines = append(resp.Lines, msg)
		}
	}
}

// JoinLines concatenates framed lines back into one payload, used when
// relaying a worker's lines verbatim to a client (e.g. numPatientAdmissions).
func JoinLines(lines []string) string {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
	}
	return buf.String()
}
