package persist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/project"
)

// maxDecoded bounds the decompressed size of a stored snapshot.
const maxDecoded = 256 << 20

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	// Core deterministic encoding: the same project always yields the same
	// blob, so digests detect unchanged saves.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("persist: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("persist: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("persist: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoded))
	if err != nil {
		panic("persist: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a snapshot into its stored form.
func Encode(snap project.Snapshot) ([]byte, error) {
	raw, err := encMode.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("persist: encode: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// Decode parses a stored blob. Any corruption is reported as
// apperr.ErrInvalidSnapshot.
func Decode(blob []byte) (project.Snapshot, error) {
	raw, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return project.Snapshot{}, fmt.Errorf("persist: decompress: %v: %w", err, apperr.ErrInvalidSnapshot)
	}
	var snap project.Snapshot
	if err := decMode.Unmarshal(raw, &snap); err != nil {
		return project.Snapshot{}, fmt.Errorf("persist: decode: %v: %w", err, apperr.ErrInvalidSnapshot)
	}
	return snap, nil
}
