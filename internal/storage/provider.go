// Package storage defines the scene directory abstraction.
package storage

import (
	"path"
	"strings"

	"github.com/starford/vellum/internal/models"
)

// Scene document suffixes.
const (
	SuffixJSON = ".scene.json"
	SuffixYAML = ".scene.yaml"
	SuffixYML  = ".scene.yml"
)

// Provider is the interface for scene file operations.
type Provider interface {
	// List returns metadata for every scene document under dir (relative to root).
	List(dir string) ([]models.SceneMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
}

// IsSceneFile reports whether name carries a scene document suffix.
func IsSceneFile(name string) bool {
	return sceneSuffix(name) != ""
}

// SceneName returns the base name of a scene path without its suffix.
func SceneName(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, sceneSuffix(base))
}

func sceneSuffix(name string) string {
	lower := strings.ToLower(name)
	for _, s := range []string{SuffixJSON, SuffixYAML, SuffixYML} {
		if strings.HasSuffix(lower, s) {
			return s
		}
	}
	return ""
}
