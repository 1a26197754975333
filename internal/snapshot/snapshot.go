// Package snapshot reads and writes portable session logs.
//
// A snapshot is a short binary header followed by a zstd-compressed CBOR
// payload:
//
//	magic   [4]byte  "CNDS"
//	version uint8    format version
//	digest  [32]byte BLAKE3-256 of the uncompressed CBOR payload
//	size    uint32   uncompressed payload length, big endian
//	body    []byte   zstd(CBOR(payload))
//
// The payload uses Core Deterministic Encoding (RFC 8949 §4.2), so the same
// log always produces identical bytes and an identical digest.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/roach88/condense/internal/ir"
)

// FormatVersion is the snapshot container version.
const FormatVersion = 1

var magic = [4]byte{'C', 'N', 'D', 'S'}

const headerSize = 4 + 1 + 32 + 4

// maxPayload bounds the declared uncompressed size to keep a corrupt header
// from forcing a huge allocation.
const maxPayload = 1 << 30

var (
	// ErrBadMagic means the input is not a snapshot.
	ErrBadMagic = errors.New("snapshot: bad magic")

	// ErrUnsupportedVersion means the snapshot was written by an unknown
	// format version.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")

	// ErrDigestMismatch means the payload does not hash to the recorded
	// digest.
	ErrDigestMismatch = errors.New("snapshot: digest mismatch")
)

// Snapshot is one session's log in wire form.
type Snapshot struct {
	SessionID   string         `cbor:"session_id"`
	WireVersion int            `cbor:"wire_version"`
	Events      []ir.WireEvent `cbor:"events"`
}

// FromLog builds a snapshot of log.
func FromLog(sessionID string, log ir.Log) Snapshot {
	return Snapshot{
		SessionID:   sessionID,
		WireVersion: ir.WireVersion,
		Events:      ir.ToWireAll(log.Events()),
	}
}

// Log decodes the snapshot's events into a Log.
func (s Snapshot) Log() (ir.Log, error) {
	events, err := ir.FromWireAll(s.Events)
	if err != nil {
		return ir.Log{}, fmt.Errorf("snapshot %s: %w", s.SessionID, err)
	}
	return ir.NewLog(events), nil
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Keep sub-second precision; the default Unix encoding truncates.
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes s and returns the snapshot bytes.
func Encode(s Snapshot) ([]byte, error) {
	payload, err := encMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode payload: %w", err)
	}
	digest := blake3.Sum256(payload)

	var buf bytes.Buffer
	buf.Grow(headerSize + len(payload)/2)
	buf.Write(magic[:])
	buf.WriteByte(FormatVersion)
	buf.Write(digest[:])
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(payload))); err != nil {
		return nil, fmt.Errorf("snapshot: write size: %w", err)
	}
	buf.Write(zstdEncoder.EncodeAll(payload, nil))
	return buf.Bytes(), nil
}

// Decode parses snapshot bytes, verifying the digest.
func Decode(data []byte) (Snapshot, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic[:]) {
		return Snapshot{}, ErrBadMagic
	}
	if data[4] != FormatVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[4])
	}

	var want [32]byte
	copy(want[:], data[5:37])
	size := binary.BigEndian.Uint32(data[37:41])
	if size > maxPayload {
		return Snapshot{}, fmt.Errorf("snapshot: declared payload size %d exceeds limit", size)
	}

	payload, err := zstdDecoder.DecodeAll(data[headerSize:], make([]byte, 0, size))
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decompress: %w", err)
	}
	if len(payload) != int(size) {
		return Snapshot{}, fmt.Errorf("snapshot: decompress: got %d bytes, expected %d", len(payload), size)
	}
	if blake3.Sum256(payload) != want {
		return Snapshot{}, ErrDigestMismatch
	}

	var s Snapshot
	if err := decMode.Unmarshal(payload, &s); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode payload: %w", err)
	}
	return s, nil
}

// Digest returns the BLAKE3-256 digest recorded in snapshot bytes, hex
// encoded.
func Digest(data []byte) (string, error) {
	if len(data) < headerSize || !bytes.Equal(data[:4], magic[:]) {
		return "", ErrBadMagic
	}
	return fmt.Sprintf("%x", data[5:37]), nil
}

// Write encodes s to w.
func Write(w io.Writer, s Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	return nil
}

// Read decodes a snapshot from r.
func Read(r io.Reader) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read: %w", err)
	}
	return Decode(data)
}
