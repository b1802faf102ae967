package main

import (
	"os"

	"github.com/cenkalti/fetch/download"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

const defaultConfig = "~/.fetch.yaml"

// LoadConfig reads the YAML file at filename on top of download.DefaultConfig.
// Missing file is not an error.
func LoadConfig(filename string) (*download.Config, error) {
	c := download.DefaultConfig
	filename, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.UnmarshalStrict(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
