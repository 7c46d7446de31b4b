// Package gltf rewrites binary glTF scenes so embedded images become
// standalone files referenced by URI.
package gltf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Binary glTF layout constants, little-endian throughout.
const (
	glbMagic   uint32 = 0x46546C67 // "glTF"
	glbVersion uint32 = 2

	chunkJSON uint32 = 0x4E4F534A // "JSON"
	chunkBIN  uint32 = 0x004E4942 // "BIN\0"

	headerSize      = 12
	chunkHeaderSize = 8
	chunkAlignment  = 4
)

var (
	// ErrNotGLB indicates the file is not a binary glTF container at all.
	ErrNotGLB = errors.New("not a binary glTF container")

	// ErrMalformed indicates a container whose structure cannot be trusted.
	ErrMalformed = errors.New("malformed binary glTF container")
)

// container is the decoded chunk layout: the scene document plus an optional
// binary payload. Unknown chunk types are dropped on decode, as the format
// permits.
type container struct {
	JSON []byte
	BIN  []byte
}

// decodeContainer parses GLB bytes into their chunks.
func decodeContainer(data []byte) (*container, error) {
	if len(data) < headerSize || binary.LittleEndian.Uint32(data[0:4]) != glbMagic {
		return nil, ErrNotGLB
	}

	if v := binary.LittleEndian.Uint32(data[4:8]); v != glbVersion {
		return nil, fmt.Errorf("unsupported container version %d: %w", v, ErrMalformed)
	}

	total := binary.LittleEndian.Uint32(data[8:12])
	if total < headerSize || int64(total) > int64(len(data)) {
		return nil, fmt.Errorf("declared length %d out of bounds: %w", total, ErrMalformed)
	}

	var decoded container

	body := data[headerSize:total]
	for len(body) > 0 {
		if len(body) < chunkHeaderSize {
			return nil, fmt.Errorf("truncated chunk header: %w", ErrMalformed)
		}

		length := binary.LittleEndian.Uint32(body[0:4])
		kind := binary.LittleEndian.Uint32(body[4:8])

		body = body[chunkHeaderSize:]
		if int64(length) > int64(len(body)) {
			return nil, fmt.Errorf("truncated chunk payload: %w", ErrMalformed)
		}

		payload := body[:length]
		body = body[length:]

		switch kind {
		case chunkJSON:
			decoded.JSON = payload
		case chunkBIN:
			decoded.BIN = payload
		}
	}

	if len(decoded.JSON) == 0 {
		return nil, fmt.Errorf("missing scene document chunk: %w", ErrMalformed)
	}

	return &decoded, nil
}

// encode serializes the container back into GLB bytes.
// The document chunk is space-padded and the binary chunk zero-padded to the
// required four-byte alignment.
func (c *container) encode() []byte {
	jsonChunk := padChunk(c.JSON, ' ')
	size := headerSize + chunkHeaderSize + len(jsonChunk)

	var binChunk []byte

	if len(c.BIN) > 0 {
		binChunk = padChunk(c.BIN, 0)
		size += chunkHeaderSize + len(binChunk)
	}

	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, glbMagic)
	out = binary.LittleEndian.AppendUint32(out, glbVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(size))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(jsonChunk)))
	out = binary.LittleEndian.AppendUint32(out, chunkJSON)
	out = append(out, jsonChunk...)

	if len(binChunk) > 0 {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(binChunk)))
		out = binary.LittleEndian.AppendUint32(out, chunkBIN)
		out = append(out, binChunk...)
	}

	return out
}

// padChunk pads data to the chunk alignment with the given filler byte.
func padChunk(data []byte, filler byte) []byte {
	remainder := len(data) % chunkAlignment
	if remainder == 0 {
		return data
	}

	padded := make([]byte, len(data), len(data)+chunkAlignment-remainder)
	copy(padded, data)

	for i := remainder; i < chunkAlignment; i++ {
		padded = append(padded, filler)
	}

	return padded
}
