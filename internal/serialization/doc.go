// Package serialization saves and loads parameter state dictionaries in the
// .pllay checkpoint format.
//
//	Format Structure:
//	  0x00 [4 bytes: Magic "PLLY"]
//	  0x04 [4 bytes: Version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: Reserved]
//	  0x10 [8 bytes: Header Size (uint64 LE)]
//	  0x18 [8 bytes: Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON metadata]
//	       [Tensor data: float64 LE, 64-byte aligned]
//
// Tensors are written in name order, so equal state dictionaries produce
// equal data sections and checksums.
//
// Example usage:
//
//	err := serialization.WriteFile("model.pllay", model.StateDict(), serialization.Header{
//	    ModelType: "TopoClassifier",
//	})
//
//	f, err := serialization.ReadFile("model.pllay", serialization.ReaderOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = model.LoadStateDict(f.Tensors)
package serialization
