package models

import "time"

// SceneMetadata describes a scene document on disk.
type SceneMetadata struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Normalize replaces nil selection maps with empty ones.
func (s *AppState) Normalize() {
	if s.SelectedElementIDs == nil {
		s.SelectedElementIDs = map[string]bool{}
	}
	if s.SelectedGroupIDs == nil {
		s.SelectedGroupIDs = map[string]bool{}
	}
}
