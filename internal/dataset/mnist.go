package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const mnistSide = 28

// LoadMNIST loads MNIST from the official IDX files in dir.
//
// Expected files in dir:
//   - train-images-idx3-ubyte (or t10k-images-idx3-ubyte for test)
//   - train-labels-idx1-ubyte (or t10k-labels-idx1-ubyte for test)
//
// maxSamples limits the number loaded; 0 loads all.
func LoadMNIST(dir string, train bool, maxSamples int) (*Dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	imagesRaw, side, err := readIDXImages(filepath.Join(dir, prefix+"-images-idx3-ubyte"))
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	labelsRaw, err := readIDXLabels(filepath.Join(dir, prefix+"-labels-idx1-ubyte"))
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	if len(imagesRaw) != len(labelsRaw) {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrMismatch, len(imagesRaw), len(labelsRaw))
	}

	n := len(imagesRaw)
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}
	d := &Dataset{Images: make([][]float64, n), Labels: make([]int, n), Side: side}
	for i := 0; i < n; i++ {
		d.Images[i] = normalize(imagesRaw[i])
		d.Labels[i] = int(labelsRaw[i])
	}
	return d, nil
}

// LoadMNISTCSV loads MNIST from a Kaggle-style CSV file:
//
//	label,pixel0,pixel1,...,pixel783
//	5,0,0,12,...,0
func LoadMNISTCSV(filename string, maxSamples int) (*Dataset, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: CSV file is empty or missing header", ErrInvalidFormat)
	}
	records = records[1:]
	if maxSamples > 0 && len(records) > maxSamples {
		records = records[:maxSamples]
	}

	const cells = mnistSide * mnistSide
	d := &Dataset{Images: make([][]float64, len(records)), Labels: make([]int, len(records)), Side: mnistSide}
	for i, record := range records {
		if len(record) != cells+1 {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrInvalidFormat, i+1, len(record), cells+1)
		}
		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid label at row %d: %w", i+1, err)
		}
		if label < 0 || label > 9 {
			return nil, fmt.Errorf("%w: label out of range [0, 9] at row %d: %d", ErrInvalidFormat, i+1, label)
		}
		d.Labels[i] = label

		pixels := make([]byte, cells)
		for j := range pixels {
			v, err := strconv.Atoi(record[j+1])
			if err != nil || v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: pixel at row %d, column %d: %q", ErrInvalidFormat, i+1, j+1, record[j+1])
			}
			pixels[j] = byte(v)
		}
		d.Images[i] = normalize(pixels)
	}
	return d, nil
}

// normalize maps 0-255 pixels to [0, 1].
func normalize(pixels []byte) []float64 {
	out := make([]float64, len(pixels))
	for i, p := range pixels {
		out[i] = float64(p) / 255.0
	}
	return out
}
