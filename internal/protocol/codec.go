package protocol

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the length of the big-endian frame length prefix.
const HeaderSize = 4

// DefaultMaxFrameSize bounds a single payload when no limit is configured.
const DefaultMaxFrameSize = 16 << 20

var (
	// ErrMalformed reports a frame whose payload is not a valid message.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrFrameTooLarge reports a payload above the frame size limit.
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// Marshal serializes msg to its JSON payload.
func Marshal(msg Message, maxSize int) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	if len(payload) > maxSize {
		return nil, fmt.Errorf("marshal %s: %d bytes: %w", msg.Type, len(payload), ErrFrameTooLarge)
	}
	return payload, nil
}

// Unmarshal decodes a single JSON payload.
func Unmarshal(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return msg, nil
}

// Frame prefixes payload with its length, ready for a single write.
func Frame(payload []byte) []byte {
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame
}

// Encode marshals msg and frames it.
func Encode(msg Message, maxSize int) ([]byte, error) {
	payload, err := Marshal(msg, maxSize)
	if err != nil {
		return nil, err
	}
	return Frame(payload), nil
}

// NewFrameSplitter returns a bufio.SplitFunc that yields one payload per
// length-prefixed frame. Partial headers and bodies request more data.
func NewFrameSplitter(maxSize int) bufio.SplitFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if len(data) < HeaderSize {
			if atEOF && len(data) > 0 {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, nil
		}

		size := binary.BigEndian.Uint32(data)
		if uint64(size) > uint64(maxSize) {
			return 0, nil, fmt.Errorf("announced %d bytes: %w", size, ErrFrameTooLarge)
		}

		end := HeaderSize + int(size)
		if len(data) < end {
			if atEOF {
				return 0, nil, io.ErrUnexpectedEOF
			}
			return 0, nil, nil
		}
		return end, data[HeaderSize:end], nil
	}
}

// ScanFrames splits length-prefixed frames using DefaultMaxFrameSize.
var ScanFrames = NewFrameSplitter(DefaultMaxFrameSize)

// Decoder reads framed messages from a stream.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), HeaderSize+maxSize)
	scanner.Split(NewFrameSplitter(maxSize))
	return &Decoder{scanner: scanner}
}

// NextPayload returns the raw payload of the next frame. The returned slice
// is only valid until the following call.
func (d *Decoder) NextPayload() ([]byte, error) {
	if d.scanner.Scan() {
		return d.scanner.Bytes(), nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Next returns the next message. Errors wrapping ErrMalformed leave the
// stream positioned at the following frame; any other error is final.
func (d *Decoder) Next() (Message, error) {
	payload, err := d.NextPayload()
	if err != nil {
		return Message{}, err
	}
	return Unmarshal(payload)
}
