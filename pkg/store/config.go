package store

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DatasetConfig holds dataset creation parameters. Chunk size and element
// type are fixed for the dataset's lifetime once Create has run.
type DatasetConfig struct {
	// DataDir is the dataset directory.
	DataDir string `yaml:"data_dir" validate:"required"`

	// ChunkSize is the number of elements per chunk.
	ChunkSize uint64 `yaml:"chunk_size" validate:"gt=0"`

	// ElementType is the fixed-width scalar type of each element.
	ElementType ElementType `yaml:"element_type" validate:"required"`

	// FillValue is synthesized for every element not yet covered by a
	// written chunk. For float element types the value is converted.
	FillValue int64 `yaml:"fill_value"`

	// MaxLogicalLength caps Extend. Zero means unbounded.
	MaxLogicalLength uint64 `yaml:"max_logical_length"`
}

var validate = validator.New()

// Validate checks the configuration before any dataset state is created.
func (c *DatasetConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.ElementType.Size() == 0 {
		return fmt.Errorf("%w: unknown element type", ErrInvalidConfig)
	}
	if c.MaxLogicalLength != 0 && c.MaxLogicalLength%c.ChunkSize != 0 {
		return fmt.Errorf("%w: max_logical_length must be a multiple of chunk_size", ErrInvalidConfig)
	}
	return nil
}

// RawChunkBytes returns the byte budget of one uncompressed chunk. Encoded
// payloads larger than this are rejected before they reach storage.
func (c *DatasetConfig) RawChunkBytes() int {
	return int(c.ChunkSize) * c.ElementType.Size()
}

// LoadConfig reads and validates a DatasetConfig from a YAML file.
func LoadConfig(path string) (*DatasetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg DatasetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
