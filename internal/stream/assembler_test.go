package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func frame(content string) string {
	return fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", content)
}

func sampleStream() string {
	return ": keep-alive\n\n" +
		frame("Hello") +
		"event: ping\n" +
		frame(", नमस्ते") +
		"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\r\n\r\n" +
		frame(" வணக்கம் 👋") +
		"data: [DONE]\n\n"
}

const sampleContent = "Hello, नमस्ते வணக்கம் 👋"

func feed(chunks ...[]byte) (*Assembler, []string) {
	var updates []string
	a := NewAssembler(func(content string) { updates = append(updates, content) })
	for _, c := range chunks {
		_, _ = a.Write(c)
	}
	return a, updates
}

func TestAssembler_SplitScenario(t *testing.T) {
	a, updates := feed(
		[]byte(`data: {"choices":[{"delta":{"content":"Hel`),
		[]byte("lo\"}}]}\n\n"),
		[]byte("data: [DONE]\n\n"),
	)
	require.Equal(t, "Hello", a.Content())
	require.Equal(t, []string{"Hello"}, updates)
	require.True(t, a.Done())
}

func TestAssembler_SingleChunk(t *testing.T) {
	a, updates := feed([]byte(sampleStream()))
	require.Equal(t, sampleContent, a.Content())
	require.Len(t, updates, 3)
	require.Equal(t, "Hello", updates[0])
	require.Equal(t, sampleContent, updates[2])
	require.True(t, a.Done())
}

func TestAssembler_EverySplitOffsetConverges(t *testing.T) {
	raw := []byte(sampleStream())
	for i := 0; i <= len(raw); i++ {
		a, _ := feed(raw[:i], raw[i:])
		require.Equal(t, sampleContent, a.Content(), "split at %d", i)
		require.True(t, a.Done(), "split at %d", i)
	}
}

func TestAssembler_EveryDoubleSplitConverges(t *testing.T) {
	raw := []byte(frame("é😀") + frame("ok") + "data: [DONE]\n")
	for i := 0; i <= len(raw); i++ {
		for j := i; j <= len(raw); j++ {
			a, _ := feed(raw[:i], raw[i:j], raw[j:])
			require.Equal(t, "é😀ok", a.Content(), "split at %d/%d", i, j)
		}
	}
}

func TestAssembler_ByteAtATime(t *testing.T) {
	raw := []byte(sampleStream())
	chunks := make([][]byte, 0, len(raw))
	for i := range raw {
		chunks = append(chunks, raw[i:i+1])
	}
	a, updates := feed(chunks...)
	require.Equal(t, sampleContent, a.Content())
	require.Equal(t, sampleContent, updates[len(updates)-1])
}

func TestAssembler_CommentsAndBlankLinesNeverUpdate(t *testing.T) {
	a, updates := feed([]byte(":heartbeat\n\n\r\n: another\n   \n"))
	require.Empty(t, updates)
	require.Empty(t, a.Content())
	require.False(t, a.Done())
}

func TestAssembler_UnknownFramesIgnored(t *testing.T) {
	a, updates := feed([]byte("event: message\nid: 4\nretry: 100\ndata:{\"x\":1}\n" + frame("a")))
	require.Equal(t, "a", a.Content())
	require.Equal(t, []string{"a"}, updates)
}

func TestAssembler_ValidJSONWithoutContentSkipped(t *testing.T) {
	a, updates := feed([]byte("data: {}\ndata: null\ndata: \"text\"\ndata: {\"choices\":[]}\ndata: {\"choices\":\"x\"}\n" + frame("z")))
	require.Equal(t, "z", a.Content())
	require.Len(t, updates, 1)
}

func TestAssembler_InputAfterDoneIgnored(t *testing.T) {
	a, _ := feed([]byte(frame("a")+"data: [DONE]\n"), []byte(frame("b")))
	require.Equal(t, "a", a.Content())
	require.True(t, a.Done())
}

func TestAssembler_IncompleteFrameIsKept(t *testing.T) {
	a, updates := feed([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"x\"\n"))
	require.Empty(t, updates)
	require.Equal(t, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"\n", a.pending)
}

func TestDecoder_HoldsBackPartialRune(t *testing.T) {
	var d utf8Decoder
	raw := []byte("a€")
	require.Equal(t, "a", d.decode(raw[:2]))
	require.Equal(t, "", d.decode(raw[2:3]))
	require.Equal(t, "€", d.decode(raw[3:]))
}

func TestDecoder_InvalidBytesReplaced(t *testing.T) {
	var d utf8Decoder
	require.Equal(t, "a�b", d.decode([]byte{'a', 0xff, 'b'}))
}

func TestDecoder_EachInvalidByteReplaced(t *testing.T) {
	var d utf8Decoder
	require.Equal(t, "a\uFFFD\uFFFDb", d.decode([]byte("a\xff\xfeb")))
	// A truncated sequence followed by ASCII yields one replacement per byte.
	require.Equal(t, "\uFFFD\uFFFDx", d.decode([]byte("\xe2\x82x")))
	require.Equal(t, "ok \uFFFD", d.decode([]byte("ok \uFFFD")))
}

type chunkedReader struct {
	chunks []string
	err    error
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestConsume_ReadsUntilEOFAndDropsPartialTail(t *testing.T) {
	r := &chunkedReader{chunks: []string{frame("one"), "data: {\"choices\":[{\"del"}}
	content, err := Consume(context.Background(), r, nil)
	require.NoError(t, err)
	require.Equal(t, "one", content)
}

func TestConsume_StopsAtDone(t *testing.T) {
	r := strings.NewReader(frame("done") + "data: [DONE]\n" + frame("late"))
	content, err := Consume(context.Background(), r, nil)
	require.NoError(t, err)
	require.Equal(t, "done", content)
}

func TestConsume_ReturnsPartialContentOnReadError(t *testing.T) {
	r := &chunkedReader{chunks: []string{frame("par")}, err: errors.New("connection reset")}
	var last string
	content, err := Consume(context.Background(), r, func(c string) { last = c })
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")
	require.Equal(t, "par", content)
	require.Equal(t, "par", last)
}

func TestConsume_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Consume(ctx, strings.NewReader(frame("x")), nil)
	require.ErrorIs(t, err, context.Canceled)
}
