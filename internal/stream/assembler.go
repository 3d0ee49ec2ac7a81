// Package stream assembles an assistant reply from a server-sent event feed
// of OpenAI-style chat completion chunks.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	dataPrefix  = "data: "
	donePayload = "[DONE]"
	readSize    = 4096
)

// deltaFrame is the part of a completion chunk the assembler reads.
type deltaFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Assembler consumes raw chunks through Write. Chunk boundaries may split
// characters, lines or JSON objects anywhere.
type Assembler struct {
	decoder  utf8Decoder
	pending  string
	content  strings.Builder
	done     bool
	onUpdate func(content string)
}

// NewAssembler returns an Assembler that calls onUpdate with the full
// accumulated content after every non-empty delta. onUpdate may be nil.
func NewAssembler(onUpdate func(content string)) *Assembler {
	return &Assembler{onUpdate: onUpdate}
}

// Write feeds one chunk. It never fails; input after the end-of-stream
// sentinel is ignored.
func (a *Assembler) Write(chunk []byte) (int, error) {
	if a.done {
		return len(chunk), nil
	}
	a.pending += a.decoder.decode(chunk)
	a.drain()
	return len(chunk), nil
}

// Content returns the text accumulated so far.
func (a *Assembler) Content() string {
	return a.content.String()
}

// Done reports whether the end-of-stream sentinel was seen.
func (a *Assembler) Done() bool {
	return a.done
}

func (a *Assembler) drain() {
	for {
		idx := strings.IndexByte(a.pending, '\n')
		if idx < 0 {
			return
		}
		line := a.pending[:idx]
		a.pending = a.pending[idx+1:]

		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == donePayload {
			a.done = true
			return
		}

		if !json.Valid([]byte(payload)) {
			// Assume the frame is incomplete: keep it and wait for more bytes.
			a.pending = line + "\n" + a.pending
			return
		}

		var frame deltaFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}
		delta := frame.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		a.content.WriteString(delta)
		if a.onUpdate != nil {
			a.onUpdate(a.content.String())
		}
	}
}

// Consume reads r until EOF, the end-of-stream sentinel or ctx cancellation
// and returns the accumulated content. On a read error the partial content is
// returned together with the error.
func Consume(ctx context.Context, r io.Reader, onUpdate func(content string)) (string, error) {
	a := NewAssembler(onUpdate)
	buf := make([]byte, readSize)
	for !a.Done() {
		if err := ctx.Err(); err != nil {
			return a.Content(), err
		}
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = a.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return a.Content(), fmt.Errorf("stream: read: %w", err)
		}
	}
	return a.Content(), nil
}
