package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/parser"
	"github.com/starford/vellum/internal/sceneservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *sceneservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *sceneservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListScenes handles GET /api/scenes.
//
//	@Summary		List scenes, most recently updated first
//	@Tags			scenes
//	@Produce		json
//	@Success		200	{object}	SceneListResponse
//	@Security		BearerAuth
//	@Router			/scenes [get]
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListScenes(r.Context())
	if err != nil {
		writeServiceError(w, "list scenes", "", err)
		return
	}
	writeJSON(w, http.StatusOK, SceneListResponse{Scenes: items, Total: len(items)})
}

// CreateScene handles POST /api/scenes.
//
//	@Summary		Create a scene
//	@Tags			scenes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSceneRequest	true	"Scene to create"
//	@Success		201		{object}	SceneDetail
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes [post]
func (h *Handler) CreateScene(w http.ResponseWriter, r *http.Request) {
	var req CreateSceneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	scene, err := h.svc.CreateScene(r.Context(), req.Name, req.Elements, req.AppState)
	if err != nil {
		writeServiceError(w, "create scene", "", err)
		return
	}
	writeJSON(w, http.StatusCreated, scene)
}

// GetScene handles GET /api/scenes/{id}.
//
//	@Summary		Get a scene with its live and deleted elements
//	@Tags			scenes
//	@Produce		json
//	@Param			id	path		string	true	"Scene id"
//	@Success		200	{object}	SceneDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id} [get]
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scene, err := h.svc.GetScene(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get scene", id, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// CommitScene handles PUT /api/scenes/{id}.
//
//	@Summary		Replace the scene and record the difference as one undo entry
//	@Tags			scenes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Scene id"
//	@Param			body	body		CommitSceneRequest	true	"Next scene state"
//	@Success		200		{object}	CommitResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id} [put]
func (h *Handler) CommitScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CommitSceneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Commit(r.Context(), id, req.Elements, req.AppState)
	if err != nil {
		writeServiceError(w, "commit scene", id, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// DeleteScene handles DELETE /api/scenes/{id}.
//
//	@Summary		Delete a scene, its history and its file
//	@Tags			scenes
//	@Param			id	path	string	true	"Scene id"
//	@Success		204	"Scene deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id} [delete]
func (h *Handler) DeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteScene(r.Context(), id); err != nil {
		writeServiceError(w, "delete scene", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Undo handles POST /api/scenes/{id}/undo.
//
//	@Summary		Revert the latest visible history entry
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"Scene id"
//	@Success		200	{object}	SceneDetail
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id}/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scene, err := h.svc.Undo(r.Context(), id)
	if err != nil {
		writeServiceError(w, "undo", id, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// Redo handles POST /api/scenes/{id}/redo.
//
//	@Summary		Reapply the latest undone history entry
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"Scene id"
//	@Success		200	{object}	SceneDetail
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id}/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scene, err := h.svc.Redo(r.Context(), id)
	if err != nil {
		writeServiceError(w, "redo", id, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// History handles GET /api/scenes/{id}/history.
//
//	@Summary		Sizes of the undo and redo stacks
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"Scene id"
//	@Success		200	{object}	HistoryResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, "history", id, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// SyncIndices handles POST /api/scenes/{id}/sync-indices.
//
//	@Summary		Repair missing or out-of-order fractional indices
//	@Tags			scenes
//	@Produce		json
//	@Param			id	path		string	true	"Scene id"
//	@Success		200	{object}	SyncIndicesResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id}/sync-indices [post]
func (h *Handler) SyncIndices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ids, err := h.svc.SyncIndices(r.Context(), id)
	if err != nil {
		writeServiceError(w, "sync indices", id, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncIndicesResponse{Reindexed: ids})
}

// Validate handles GET /api/scenes/{id}/validate.
//
//	@Summary		Report binding and ordering invariant violations
//	@Tags			scenes
//	@Produce		json
//	@Param			id	path		string	true	"Scene id"
//	@Success		200	{object}	ValidationResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id}/validate [get]
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := h.svc.Validate(r.Context(), id)
	if err != nil {
		writeServiceError(w, "validate", id, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Export handles POST /api/scenes/{id}/export.
//
//	@Summary		Write the scene to its document in the scenes directory
//	@Tags			scenes
//	@Produce		json
//	@Param			id		path		string	true	"Scene id"
//	@Param			format	query		string	false	"Document format, defaults to the bound document's"	Enums(json, yaml)
//	@Success		200		{object}	ExportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id}/export [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var format parser.Format
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := parser.ParseFormat(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		format = f
	}
	res, err := h.svc.Export(r.Context(), id, format)
	if err != nil {
		writeServiceError(w, "export", id, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /api/search.
//
//	@Summary		Search scenes by name and text content
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.SearchScenes(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", "", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
