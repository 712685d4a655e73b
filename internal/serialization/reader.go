package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/born-ml/pllay/internal/tensor"
)

// ReaderOptions configures Read.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Zero value is ValidationStrict
}

// File is a decoded .pllay file.
type File struct {
	Header  Header
	Flags   uint32
	Tensors map[string]*tensor.Tensor
}

// Read decodes a .pllay stream.
func Read(r io.Reader, opts ReaderOptions) (*File, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	if dataSize > math.MaxInt64/2 {
		return nil, &ValidationError{Type: "out_of_bounds", Details: fmt.Sprintf("data size %d", dataSize)}
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&header, int64(dataSize), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	padding := alignedDataOffset(int64(headerSize)) - int64(FixedHeaderSize) - int64(headerSize)
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, fmt.Errorf("failed to read padding: %w", err)
	}

	var data bytes.Buffer
	if _, err := io.CopyN(&data, r, int64(dataSize)); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if !opts.SkipChecksumValidation {
		computed, err := ComputeChecksumReader(bytes.NewReader(data.Bytes()))
		if err != nil {
			return nil, err
		}
		if err := ValidateChecksum(computed, stored); err != nil {
			return nil, err
		}
	}

	tensors := make(map[string]*tensor.Tensor, len(header.Tensors))
	raw := data.Bytes()
	for _, meta := range header.Tensors {
		t, err := decodeTensor(meta, raw)
		if err != nil {
			return nil, err
		}
		tensors[meta.Name] = t
	}
	return &File{Header: header, Flags: flags, Tensors: tensors}, nil
}

// ReadFile decodes the .pllay file at path.
func ReadFile(path string, opts ReaderOptions) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return Read(file, opts)
}

func decodeTensor(meta TensorMeta, raw []byte) (*tensor.Tensor, error) {
	if meta.DType != DTypeFloat64 {
		return nil, fmt.Errorf("%w: tensor %s has %s", ErrUnsupportedDType, meta.Name, meta.DType)
	}
	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape for tensor %s: %w", meta.Name, err)
	}
	n := shape.NumElements()
	if int64(n*bytesPerElement) != meta.Size {
		return nil, &ValidationError{
			Type:    "size_mismatch",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", meta.Shape, n*bytesPerElement, meta.Size),
		}
	}
	if meta.Offset < 0 || meta.Offset+meta.Size > int64(len(raw)) {
		return nil, &ValidationError{
			Type:    "out_of_bounds",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("offset %d + size %d > data_size %d", meta.Offset, meta.Size, len(raw)),
		}
	}

	values := make([]float64, n)
	src := raw[meta.Offset : meta.Offset+meta.Size]
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*bytesPerElement:]))
	}
	return tensor.FromSlice(values, shape)
}

// ParseModelID parses the header's model id.
func (h Header) ParseModelID() (uuid.UUID, error) {
	id, err := uuid.Parse(h.ModelID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %w", ErrInvalidModelID, h.ModelID, err)
	}
	return id, nil
}
