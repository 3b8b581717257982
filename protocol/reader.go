package protocol

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	// dataPrefix marks a record line that carries a payload.
	dataPrefix = "data: "
	// doneSentinel is the literal payload marking end of stream.
	doneSentinel = "[DONE]"
)

// StreamReader decodes the event stream into envelopes, one record at a
// time. Records are newline-delimited; a record split across transport
// chunks is reassembled by the buffered reader, so chunk boundaries never
// have to align with record boundaries. The reader is single-pass and not
// restartable.
type StreamReader struct {
	br   *bufio.Reader
	done bool
}

// NewStreamReader wraps r for record-at-a-time decoding.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{br: bufio.NewReader(r)}
}

// Next returns the next envelope. It returns io.EOF once the terminal
// sentinel has been seen or the underlying stream closes. A malformed
// payload yields an envelope with a nil Chunk rather than an error; parse
// failures are per-record, not fatal.
func (s *StreamReader) Next() (Envelope, error) {
	for {
		if s.done {
			return Envelope{}, io.EOF
		}

		line, err := s.br.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return Envelope{}, err
			}
			s.done = true
			return s.flushTrailing(line)
		}

		line = strings.TrimRight(line, "\r\n")
		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok || payload == "" {
			continue // blank or non-data line
		}
		if payload == doneSentinel {
			s.done = true
			return Envelope{}, io.EOF
		}
		return decode(payload), nil
	}
}

// flushTrailing handles whatever is buffered when the stream closes
// without a final newline. A complete data record is decoded normally;
// any other leftover text is surfaced as plain content so streamed text
// is never dropped.
func (s *StreamReader) flushTrailing(line string) (Envelope, error) {
	rest := strings.TrimSpace(line)
	if rest == "" {
		return Envelope{}, io.EOF
	}
	if payload, ok := strings.CutPrefix(rest, dataPrefix); ok {
		if payload == "" || payload == doneSentinel {
			return Envelope{}, io.EOF
		}
		return decode(payload), nil
	}
	return Envelope{
		Chunk:   &StreamChunk{Content: NewTextContent(rest)},
		Payload: rest,
	}, nil
}

// decode parses a record payload into an envelope. Payloads that are not
// valid JSON come back with a nil Chunk.
func decode(payload string) Envelope {
	var chunk StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Envelope{Payload: payload}
	}
	return Envelope{Chunk: &chunk, Payload: payload}
}
