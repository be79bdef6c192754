package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	diffimage "pixelview/internal/diff/image"

	"golang.org/x/xerrors"
	"sigs.k8s.io/yaml"
)

const DefaultFileName = "config.json"

var FileExistsError = errors.New("file already exists")

// File is the user editable colour configuration. Both YAML and JSON are
// accepted on load.
type File struct {
	// DeltaImageColor maps a channel delta magnitude ("0".."255" or "default")
	// to the tint painted into delta images.
	DeltaImageColor map[string][3]uint8 `json:"deltaImageColor"`
	MarkerColor     [3]uint8            `json:"markerColor"`
	// NullColor fills the placeholder shown for unreadable inputs.
	NullColor    [3]uint8 `json:"nullColor"`
	DumpFileName string   `json:"dumpFileName"`
}

func Default() *File {
	return &File{
		DeltaImageColor: map[string][3]uint8{
			"0":       diffimage.Black,
			"1":       diffimage.Green,
			"2":       diffimage.Blue,
			"default": diffimage.White,
		},
		MarkerColor:  diffimage.Red,
		NullColor:    [3]uint8{0xFF, 0x00, 0xFF},
		DumpFileName: "dump.json",
	}
}

// Load reads path on top of Default, so keys missing from the file keep their
// default values.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read config: %w", err)
	}

	f := Default()
	deltaImageColor := f.DeltaImageColor
	f.DeltaImageColor = nil
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, xerrors.Errorf("failed to parse config %s: %w", path, err)
	}
	if f.DeltaImageColor == nil {
		f.DeltaImageColor = deltaImageColor
	}

	if _, err := f.ColorPolicy(); err != nil {
		return nil, xerrors.Errorf("invalid config %s: %w", path, err)
	}
	return f, nil
}

func (f *File) ColorPolicy() (*diffimage.ColorPolicy, error) {
	colors := make(map[string]diffimage.Color, len(f.DeltaImageColor))
	for key, c := range f.DeltaImageColor {
		colors[key] = c
	}
	return diffimage.ParseColorPolicy(colors)
}

// Save writes JSON, or YAML for a .yaml/.yml path. It never overwrites.
func (f *File) Save(path string) error {
	if _, err := os.Stat(path); err == nil {
		return xerrors.Errorf("%s: %w", path, FileExistsError)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(f)
	default:
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return xerrors.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return xerrors.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return xerrors.Errorf("failed to create config: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return xerrors.Errorf("failed to write config: %w", err)
	}
	return file.Close()
}
