package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Stored values are framed as 8-byte magic + 4-byte LE uint32 payload size +
// body. The body is an lz4 block, or the raw payload when lz4 could not
// shrink it.
var (
	lz4Magic = []byte("sciLz40\x00")
	rawMagic = []byte("sciRaw0\x00")
)

const headerSize = 12

// Compress frames data for storage.
func Compress(data []byte) ([]byte, error) {
	buf := make([]byte, headerSize+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(data)))

	n, err := lz4.CompressBlock(data, buf[headerSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4: compress failed: %w", err)
	}
	if n == 0 {
		copy(buf, rawMagic)
		buf = append(buf[:headerSize], data...)
		return buf, nil
	}
	copy(buf, lz4Magic)
	return buf[:headerSize+n], nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("lz4: data too short (%d bytes)", len(data))
	}
	size := binary.LittleEndian.Uint32(data[8:12])

	switch {
	case bytes.Equal(data[:8], rawMagic):
		body := data[headerSize:]
		if uint32(len(body)) != size {
			return nil, fmt.Errorf("lz4: raw frame size mismatch (%d != %d)", len(body), size)
		}
		return append([]byte(nil), body...), nil
	case bytes.Equal(data[:8], lz4Magic):
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data[headerSize:], dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: decompress failed: %w", err)
		}
		return dst[:n], nil
	}
	return nil, fmt.Errorf("lz4: invalid header magic")
}
