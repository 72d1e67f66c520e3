package mllp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

const (
	StartBlock     byte = 0x0B
	EndBlock       byte = 0x1C
	CarriageReturn byte = 0x0D
)

var (
	ErrInvalidFraming    = errors.New("mllp: prefix and suffix must be non-empty")
	ErrFrameTooLarge     = errors.New("mllp: frame too large")
	ErrMissingStartBlock = errors.New("mllp: frame missing start block")
)

// Framing is the byte envelope wrapped around every message.
type Framing struct {
	Prefix []byte
	Suffix []byte
}

// DefaultFraming returns the standard MLLP envelope: 0x0B ... 0x1C 0x0D.
func DefaultFraming() Framing {
	return Framing{
		Prefix: []byte{StartBlock},
		Suffix: []byte{EndBlock, CarriageReturn},
	}
}

func (f Framing) Validate() error {
	if len(f.Prefix) == 0 || len(f.Suffix) == 0 {
		return ErrInvalidFraming
	}
	return nil
}

// Wrap returns prefix + payload + suffix in one buffer.
func (f Framing) Wrap(payload []byte) []byte {
	buf := make([]byte, 0, len(f.Prefix)+len(payload)+len(f.Suffix))
	buf = append(buf, f.Prefix...)
	buf = append(buf, payload...)
	return append(buf, f.Suffix...)
}

// Unwrap strips one leading prefix and one trailing suffix when present.
func (f Framing) Unwrap(data []byte) []byte {
	data = bytes.TrimPrefix(data, f.Prefix)
	return bytes.TrimSuffix(data, f.Suffix)
}

// Limits constrains frame reads.
type Limits struct {
	// ChunkSize is the size of each read while waiting for a response.
	ChunkSize int
	// MaxResponseBytes stops a response read once more than this many
	// bytes have accumulated, whether or not the suffix arrived.
	MaxResponseBytes int
	// MaxFrameBytes bounds one inbound frame on the listening side.
	MaxFrameBytes int
}

func DefaultLimits() Limits {
	return Limits{
		ChunkSize:        256,
		MaxResponseBytes: 8192,
		MaxFrameBytes:    1024 * 1024,
	}
}

// WithDefaults fills zero limits from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.ChunkSize <= 0 {
		l.ChunkSize = def.ChunkSize
	}
	if l.MaxResponseBytes <= 0 {
		l.MaxResponseBytes = def.MaxResponseBytes
	}
	if l.MaxFrameBytes <= 0 {
		l.MaxFrameBytes = def.MaxFrameBytes
	}
	return l
}

// WriteFrame writes payload wrapped in framing as one buffer, continuing
// after partial writes until it is fully sent or the writer fails.
func WriteFrame(w io.Writer, payload []byte, framing Framing) (int, error) {
	if err := framing.Validate(); err != nil {
		return 0, err
	}
	return writeFull(w, framing.Wrap(payload))
}

func writeFull(w io.Writer, buf []byte) (int, error) {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// ReadResponse reads one reply in ChunkSize reads until the accumulated
// bytes end with the suffix, exceed MaxResponseBytes, or the peer closes.
// The suffix is compared against the whole buffer, so a suffix split over
// two reads still ends the loop. The returned payload has one leading
// prefix and one trailing suffix removed; it may be empty.
func ReadResponse(r io.Reader, framing Framing, limits Limits) ([]byte, error) {
	if err := framing.Validate(); err != nil {
		return nil, err
	}
	limits = limits.WithDefaults()

	chunk := make([]byte, limits.ChunkSize)
	var acc []byte
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			acc = append(acc, chunk[:n]...)
			if len(acc) > limits.MaxResponseBytes {
				break
			}
			if bytes.HasSuffix(acc, framing.Suffix) {
				break
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return framing.Unwrap(acc), nil
}

// ReadFrame reads one complete inbound frame and returns its payload.
// Bytes before the prefix (stray line feeds between frames) are dropped.
// A clean close before any byte returns io.EOF; a close mid-frame returns
// io.ErrUnexpectedEOF.
func ReadFrame(r *bufio.Reader, framing Framing, limits Limits) ([]byte, error) {
	if err := framing.Validate(); err != nil {
		return nil, err
	}
	limits = limits.WithDefaults()

	last := framing.Suffix[len(framing.Suffix)-1]
	var acc []byte
	for {
		part, err := r.ReadSlice(last)
		acc = append(acc, part...)
		if len(acc) > limits.MaxFrameBytes {
			return nil, ErrFrameTooLarge
		}
		if err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			if errors.Is(err, io.EOF) {
				if len(bytes.Trim(acc, "\r\n")) == 0 {
					return nil, io.EOF
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if bytes.HasSuffix(acc, framing.Suffix) {
			break
		}
	}

	start := bytes.Index(acc, framing.Prefix)
	if start < 0 {
		return nil, ErrMissingStartBlock
	}
	payload := acc[start+len(framing.Prefix) : len(acc)-len(framing.Suffix)]
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}
