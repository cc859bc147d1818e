package session

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest describes sessions to preload at startup. Paths are resolved
// relative to the manifest file.
type Manifest struct {
	Sessions []ManifestSession `yaml:"sessions"`
}

// ManifestSession is one session entry in a manifest.
type ManifestSession struct {
	Name   string        `yaml:"name"`
	Video  string        `yaml:"video,omitempty"`
	Active bool          `yaml:"active,omitempty"`
	IMUs   []ManifestIMU `yaml:"imus"`
}

// ManifestIMU points at one CSV recording.
type ManifestIMU struct {
	Label string `yaml:"label"`
	File  string `yaml:"file"`
}

// LoadManifest reads a YAML manifest and registers its sessions. At most
// one entry may be marked active.
func LoadManifest(path string, r *Registry) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	activeSeen := false
	for _, ms := range m.Sessions {
		if ms.Active {
			if activeSeen {
				return fmt.Errorf("manifest %s marks more than one session active", path)
			}
			activeSeen = true
		}
	}

	for _, ms := range m.Sessions {
		s, err := r.Create(ms.Name)
		if err != nil {
			return err
		}
		if ms.Video != "" {
			if err := r.SetVideoPath(s.ID, resolve(base, ms.Video)); err != nil {
				return err
			}
		}
		for _, imu := range ms.IMUs {
			csvText, err := os.ReadFile(resolve(base, imu.File))
			if err != nil {
				return fmt.Errorf("session %q: read %s: %w", ms.Name, imu.File, err)
			}
			if _, err := r.AddIMU(s.ID, imu.Label, string(csvText)); err != nil {
				return fmt.Errorf("session %q: %w", ms.Name, err)
			}
		}
		if ms.Active {
			if err := r.SetActive(s.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
