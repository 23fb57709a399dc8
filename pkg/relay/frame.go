package relay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	frameHeaderLength = 4
	// MaxFrameSize caps the payload length accepted from the host. Replies are sent back as single
	// datagrams, so nothing larger could be delivered anyway.
	MaxFrameSize = 64 * 1024
)

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteFrame writes payload preceded by its length as a 4-byte little-endian integer.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	frame := make([]byte, frameHeaderLength+len(payload))
	binary.LittleEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderLength:], payload)
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame and returns its payload. It returns io.EOF only if r
// ends cleanly between frames.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
