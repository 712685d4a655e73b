package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/pllay/internal/tensor"
)

// Write encodes stateDict to w.
//
// The header's tensor list, format version and creation time are filled in;
// a missing ModelID gets a fresh UUID. The completed header is returned.
func Write(w io.Writer, stateDict map[string]*tensor.Tensor, header Header) (Header, error) {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return Header{}, err
		}
		names = append(names, name)
	}
	slices.Sort(names)

	header.FormatVersion = FormatVersion
	header.PllayVersion = pllayVersion
	header.CreatedAt = time.Now().UTC()
	if header.ModelID == "" {
		header.ModelID = uuid.NewString()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	// Calculate tensor offsets and collect tensor data
	var data bytes.Buffer
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		t := stateDict[name]
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(t.Shape()),
			Offset: int64(data.Len()),
			Size:   int64(t.NumElements() * bytesPerElement),
		})
		var buf [bytesPerElement]byte
		for _, v := range t.Data() {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			data.Write(buf[:])
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return Header{}, fmt.Errorf("failed to marshal header: %w", err)
	}
	checksum := ComputeChecksum(data.Bytes())

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], headerFlags(header))
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(data.Len()))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	padding := alignedDataOffset(int64(len(headerJSON))) - int64(FixedHeaderSize+len(headerJSON))
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data.Bytes()} {
		if _, err := w.Write(chunk); err != nil {
			return Header{}, fmt.Errorf("failed to write: %w", err)
		}
	}
	return header, nil
}

// WriteFile writes stateDict to path, replacing any existing file.
func WriteFile(path string, stateDict map[string]*tensor.Tensor, header Header) (Header, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to create file: %w", err)
	}
	header, err = Write(file, stateDict, header)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close file: %w", cerr)
	}
	return header, err
}

func headerFlags(h Header) uint32 {
	var flags uint32
	if len(h.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if h.CheckpointMeta != nil {
		flags |= FlagHasCheckpoint
	}
	return flags
}
