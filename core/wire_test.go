package lisp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestWireRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMsg(&buf, map[string]any{"id": "r1", "op": "run", "src": "(println 1)"}); err != nil {
		t.Fatal(err)
	}
	if err := WriteMsg(&buf, map[string]any{"id": "r2"}); err != nil {
		t.Fatal(err)
	}
	msg, err := ReadMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg["src"] != "(println 1)" {
		t.Fatalf("unexpected message %v", msg)
	}
	msg, err = ReadMsg(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg["id"] != "r2" {
		t.Fatalf("unexpected message %v", msg)
	}
	if _, err := ReadMsg(&buf); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestWireTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMsg(&buf, map[string]any{"id": "r1"}); err != nil {
		t.Fatal(err)
	}
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	if _, err := ReadMsg(truncated); err == nil || err == io.EOF {
		t.Fatalf("expected read body error, got %v", err)
	}
}

func TestWireRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0xFFFFFFFF))
	buf.WriteString(`{"id":"r1"}`)

	_, err := ReadMsg(&buf)
	var tooLarge *FrameTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected FrameTooLargeError, got %v", err)
	}
	if tooLarge.Size != 0xFFFFFFFF {
		t.Fatalf("unexpected size %d", tooLarge.Size)
	}
}

func TestWriteMsgRejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMsg(&buf, map[string]any{"src": strings.Repeat("x", MaxFrameSize)})
	var tooLarge *FrameTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected FrameTooLargeError, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("oversized frame partially written: %d bytes", buf.Len())
	}
}

func TestWireTruncatedHeader(t *testing.T) {
	_, err := ReadMsg(bytes.NewReader([]byte{0, 0}))
	if err == nil || err == io.EOF {
		t.Fatalf("expected header error, got %v", err)
	}
}

func TestNextIDUnique(t *testing.T) {
	a, b := NextID(), NextID()
	if a == b || !strings.HasPrefix(a, "r") {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}
