// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Encoding names the compression applied to a snapshot payload. The
// string values are part of the socket protocol.
type Encoding string

const (
	// EncodingNone is plain CBOR.
	EncodingNone Encoding = "none"

	// EncodingZstd is CBOR compressed with zstd at the default level.
	// Best ratio for large full snapshots.
	EncodingZstd Encoding = "zstd"

	// EncodingLZ4 is CBOR compressed as a single LZ4 block. Cheaper
	// on the publish path than zstd, lower ratio.
	EncodingLZ4 Encoding = "lz4"
)

// ParseEncoding accepts "", "none", "zstd", and "lz4". The empty
// string means EncodingNone.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", EncodingNone:
		return EncodingNone, nil
	case EncodingZstd:
		return EncodingZstd, nil
	case EncodingLZ4:
		return EncodingLZ4, nil
	default:
		return "", fmt.Errorf("unknown payload encoding %q", name)
	}
}

// maxPayloadSize bounds the decompressed size a reader will accept.
const maxPayloadSize = 256 * 1024 * 1024

var errIncompressible = errors.New("payload is incompressible")

// zstd encoders and decoders are safe for concurrent use and expensive
// to construct, so one of each is shared.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxPayloadSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodePayload marshals v to CBOR and compresses it with the requested
// encoding. It returns the payload, the uncompressed CBOR size, and the
// encoding actually used: when compression does not shrink the data,
// the plain CBOR is returned with EncodingNone.
func EncodePayload(v any, encoding Encoding) ([]byte, int, Encoding, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, 0, "", fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed []byte
	switch encoding {
	case "", EncodingNone:
		return raw, len(raw), EncodingNone, nil
	case EncodingZstd:
		compressed, err = compressZstd(raw)
	case EncodingLZ4:
		compressed, err = compressLZ4(raw)
	default:
		return nil, 0, "", fmt.Errorf("unsupported payload encoding %q", encoding)
	}
	if errors.Is(err, errIncompressible) {
		return raw, len(raw), EncodingNone, nil
	}
	if err != nil {
		return nil, 0, "", err
	}
	return compressed, len(raw), encoding, nil
}

// DecodePayload reverses EncodePayload. size is the uncompressed CBOR
// length carried alongside the payload.
func DecodePayload(payload []byte, encoding Encoding, size int, v any) error {
	if size < 0 || size > maxPayloadSize {
		return fmt.Errorf("payload size %d out of range", size)
	}

	var raw []byte
	var err error
	switch encoding {
	case "", EncodingNone:
		raw = payload
	case EncodingZstd:
		raw, err = zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err == nil && len(raw) != size {
			err = fmt.Errorf("zstd: got %d bytes, expected %d", len(raw), size)
		}
	case EncodingLZ4:
		raw = make([]byte, size)
		var read int
		read, err = lz4.UncompressBlock(payload, raw)
		if err == nil && read != size {
			err = fmt.Errorf("lz4: got %d bytes, expected %d", read, size)
		}
	default:
		return fmt.Errorf("unsupported payload encoding %q", encoding)
	}
	if err != nil {
		return fmt.Errorf("decompressing payload: %w", err)
	}
	return Unmarshal(raw, v)
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for data it cannot compress.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}
