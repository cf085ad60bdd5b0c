// Package config loads the YAML file describing which index file to open,
// at what page size and order, mirroring the teacher's viper-based config
// loader.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/a4vg/disk-based-bptree/bptree"
)

const defaultPageSize = 4096

// Index describes one on-disk B+-tree index.
type Index struct {
	Path     string `mapstructure:"path"     yaml:"path"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size"`
	Order    int    `mapstructure:"order"    yaml:"order"`
	Truncate bool   `mapstructure:"truncate" yaml:"truncate"`
}

// File is the top-level shape of a loadgen/index config file.
type File struct {
	Index Index `mapstructure:"index" yaml:"index"`
}

// Load reads path as YAML and fills in PageSize/Order defaults when absent:
// PageSize defaults to 4096, Order to bptree.EstimateOrder(PageSize).
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if f.Index.PageSize == 0 {
		f.Index.PageSize = defaultPageSize
	}
	if f.Index.Order == 0 {
		f.Index.Order = bptree.EstimateOrder(f.Index.PageSize)
	}

	return &f, nil
}

// Dump writes f to path as YAML, the inverse of Load, useful for loadgen
// to record the config a given index directory was built with.
func Dump(path string, f *File) error {
	out, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
