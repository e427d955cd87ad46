package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/apres-range/pkg/radar/synthetic"
)

// Scene is a reflector geometry loaded from its own file
type Scene struct {
	Name       string                `json:"name" yaml:"name"`
	Reflectors []synthetic.Reflector `json:"reflectors" yaml:"reflectors"`
}

// Validate checks the scene geometry
func (s *Scene) Validate() error {
	if len(s.Reflectors) == 0 {
		return fmt.Errorf("scene %q has no reflectors", s.Name)
	}
	for i, r := range s.Reflectors {
		if r.RangeM < 0 {
			return fmt.Errorf("reflector %d: range cannot be negative", i)
		}
		if r.Amplitude < 0 {
			return fmt.Errorf("reflector %d: amplitude cannot be negative", i)
		}
	}
	return nil
}

// loadSceneFromFile loads a scene from a YAML or JSON file
func loadSceneFromFile(filePath string) (*Scene, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("scene file does not exist: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	// Determine file format
	var scene *Scene
	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		scene, err = parseSceneYAML(data)
	case ".json":
		scene, err = parseSceneJSON(data)
	default:
		// Try YAML first, then JSON
		if scene, err = parseSceneYAML(data); err != nil {
			scene, err = parseSceneJSON(data)
		}
	}
	if err != nil {
		return nil, err
	}

	if scene.Name == "" {
		scene.Name = filepath.Base(filePath)
	}

	if err := scene.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scene: %w", err)
	}

	return scene, nil
}

func parseSceneYAML(data []byte) (*Scene, error) {
	var scene Scene
	if err := yaml.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to parse YAML scene: %w", err)
	}
	return &scene, nil
}

func parseSceneJSON(data []byte) (*Scene, error) {
	var scene Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("failed to parse JSON scene: %w", err)
	}
	return &scene, nil
}
