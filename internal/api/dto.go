package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vellum/internal/journal"
	"github.com/starford/vellum/internal/models"
	"github.com/starford/vellum/internal/sceneservice"
)

// CreateSceneRequest is the request body for creating a scene.
type CreateSceneRequest struct {
	Name     string            `json:"name" example:"Architecture"`
	Elements []*models.Element `json:"elements"`
	AppState *models.AppState  `json:"appState,omitempty"`
}

// Validate validates the request.
func (r CreateSceneRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 200)),
	)
}

// CommitSceneRequest is the request body for replacing a scene's elements.
// The difference to the current state becomes one undo entry.
type CommitSceneRequest struct {
	Elements []*models.Element `json:"elements" validate:"required"`
	AppState *models.AppState  `json:"appState,omitempty"`
}

// Validate validates the request.
func (r CommitSceneRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Elements, validation.NotNil),
	)
}

// SceneDetail is the full scene response type (aliased from the domain layer).
type SceneDetail = sceneservice.SceneDetail

// SceneSummary is a lightweight item in a list response (aliased from the domain layer).
type SceneSummary = sceneservice.SceneSummary

// SceneListResponse wraps scene listings.
type SceneListResponse struct {
	Scenes []SceneSummary `json:"scenes" validate:"required"`
	Total  int            `json:"total" example:"3" validate:"required"`
}

// CommitResponse is returned after a commit.
type CommitResponse = sceneservice.CommitResult

// HistoryResponse describes the undo and redo stacks.
type HistoryResponse = sceneservice.HistoryInfo

// ValidationResponse lists invariant violations.
type ValidationResponse = sceneservice.ValidationReport

// SyncIndicesResponse lists the elements that received new order keys.
type SyncIndicesResponse struct {
	Reindexed []string `json:"reindexed" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = journal.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ExportResponse is returned after a scene has been written to disk.
type ExportResponse = sceneservice.ExportResult
