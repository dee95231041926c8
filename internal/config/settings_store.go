package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Defaults are conversion settings remembered between runs with --save-defaults.
type Defaults struct {
	Format     string `json:"format,omitempty"`
	Background string `json:"background,omitempty"`
	NoDither   bool   `json:"no_dither,omitempty"`
	Compress   string `json:"compress,omitempty"`
}

func DefaultsPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "png2lvgl", "defaults.json"), nil
}

func LoadDefaults() (Defaults, error) {
	path, err := DefaultsPath()
	if err != nil {
		return Defaults{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, err
	}
	var defaults Defaults
	if err := json.Unmarshal(data, &defaults); err != nil {
		return Defaults{}, err
	}
	return defaults, nil
}

func SaveDefaults(defaults Defaults) error {
	path, err := DefaultsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(defaults, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// MergeOptionsWithDefaults fills options left empty on the command line and
// environment from saved defaults.
func MergeOptionsWithDefaults(cli Options, saved Defaults) Options {
	if strings.TrimSpace(cli.Format) == "" {
		cli.Format = saved.Format
	}
	if strings.TrimSpace(cli.Background) == "" {
		cli.Background = saved.Background
	}
	if strings.TrimSpace(cli.Compress) == "" {
		cli.Compress = saved.Compress
	}
	if !cli.ditherSet {
		cli.NoDither = saved.NoDither
	}
	return cli
}

func DefaultsFromOptions(opts Options) Defaults {
	return Defaults{
		Format:     strings.TrimSpace(opts.Format),
		Background: strings.TrimSpace(opts.Background),
		NoDither:   opts.NoDither,
		Compress:   strings.TrimSpace(opts.Compress),
	}
}
