package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "PLLY"
	FormatVersion   = 1
	HeaderAlignment = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64   // 0x40 bytes
	ChecksumSize    = 32   // SHA-256
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	DTypeFloat64    = "float64"

	bytesPerElement = 8
	pllayVersion    = "0.3.0"
)

// Flags for the .pllay format.
const (
	FlagHasMetadata   uint32 = 1 << 0 // custom metadata included
	FlagHasCheckpoint uint32 = 1 << 1 // training state included
)

// Header represents the JSON header of a .pllay file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	PllayVersion   string            `json:"pllay_version"`
	ModelType      string            `json:"model_type"` // e.g. "TopoClassifier"
	ModelID        string            `json:"model_id"`   // UUID, assigned on first save
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int                `json:"epoch"`
	Step            int64              `json:"step"`
	Loss            float64            `json:"loss"`
	Accuracy        float64            `json:"accuracy"`
	OptimizerType   string             `json:"optimizer_type"`
	OptimizerConfig map[string]float64 `json:"optimizer_config"`
}

// TensorMeta describes a tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "topo.readout.weight"
	DType  string `json:"dtype"`  // always "float64"
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// alignedDataOffset returns where the data section starts for a JSON header
// of headerSize bytes.
func alignedDataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
