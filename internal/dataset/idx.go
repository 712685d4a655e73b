package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// readIDXImages reads an IDX image file and returns the images and their
// side length.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func readIDXImages(filename string) ([][]byte, int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()
	return decodeIDXImages(file)
}

func decodeIDXImages(r io.Reader) ([][]byte, int, error) {
	var hdr struct {
		Magic, Count, Rows, Cols uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr.Magic != idxImagesMagic {
		return nil, 0, fmt.Errorf("%w: magic %d, want %d", ErrInvalidFormat, hdr.Magic, idxImagesMagic)
	}
	if hdr.Rows != hdr.Cols {
		return nil, 0, fmt.Errorf("%w: %dx%d images are not square", ErrInvalidFormat, hdr.Rows, hdr.Cols)
	}

	size := int(hdr.Rows * hdr.Cols)
	images := make([][]byte, hdr.Count)
	for i := range images {
		images[i] = make([]byte, size)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, fmt.Errorf("failed to read image %d: %w", i, err)
		}
	}
	return images, int(hdr.Rows), nil
}

// readIDXLabels reads an IDX label file.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func readIDXLabels(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return decodeIDXLabels(file)
}

func decodeIDXLabels(r io.Reader) ([]byte, error) {
	var hdr struct {
		Magic, Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if hdr.Magic != idxLabelsMagic {
		return nil, fmt.Errorf("%w: magic %d, want %d", ErrInvalidFormat, hdr.Magic, idxLabelsMagic)
	}
	labels := make([]byte, hdr.Count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}
