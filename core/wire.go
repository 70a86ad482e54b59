package lisp

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
)

// MaxFrameSize bounds a single request or response body. Programs and
// transcripts are text; anything larger is a misbehaving peer.
const MaxFrameSize = 16 << 20

const frameHeaderSize = 4

var msgCounter uint64

// NextID returns a process-unique request id.
func NextID() string {
	n := atomic.AddUint64(&msgCounter, 1)
	return fmt.Sprintf("r%d", n)
}

// FrameTooLargeError reports a frame whose declared body length exceeds
// MaxFrameSize.
type FrameTooLargeError struct {
	Size uint64
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame of %d bytes exceeds limit of %d", e.Size, MaxFrameSize)
}

// WriteMsg sends msg as one frame: a big-endian uint32 body length followed
// by the JSON body, in a single write.
func WriteMsg(w io.Writer, msg map[string]any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if len(body) > MaxFrameSize {
		return &FrameTooLargeError{Size: uint64(len(body))}
	}
	frame := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[frameHeaderSize:], body)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadMsg reads one frame written by WriteMsg. A clean close between
// frames returns io.EOF; an oversized length is rejected before any body
// is read.
func ReadMsg(r io.Reader) (map[string]any, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, &FrameTooLargeError{Size: uint64(size)}
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return msg, nil
}
