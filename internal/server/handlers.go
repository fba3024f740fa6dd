// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jeranaias/fieldref/internal/export"
	"github.com/jeranaias/fieldref/internal/model"
	"github.com/jeranaias/fieldref/internal/transport"
)

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthTimeout)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Version: Version, Database: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version, Database: "ok"})
}

// ============================================================================
// SECTIONS
// ============================================================================

// addSectionRequest is the body of POST /sections.
type addSectionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	ParentID    *int64 `json:"parent_id"`
	CreatedBy   int64  `json:"created_by"`
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	var parent *int64
	if raw := r.URL.Query().Get("parent"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "parent must be a section id")
			return
		}
		parent = &id
	}

	sections, err := s.repo.ListChildren(r.Context(), parent)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sections))
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	sec, err := s.repo.GetSection(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (s *Server) handleAddSection(w http.ResponseWriter, r *http.Request) {
	var req addSectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sec, err := s.repo.AddSection(r.Context(), model.NewSection{
		Title:       req.Title,
		Description: req.Description,
		Icon:        req.Icon,
		ParentID:    req.ParentID,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sec)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	var upd model.SectionUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.repo.UpdateSection(r.Context(), id, upd); err != nil {
		s.respondError(w, r, err)
		return
	}
	sec, err := s.repo.GetSection(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err := s.repo.DeleteSection(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// CONTENT
// ============================================================================

// addContentRequest is the body of POST /sections/{id}/content.
type addContentRequest struct {
	Kind        string `json:"content_type"`
	Body        string `json:"text_content"`
	MediaRef    string `json:"media_file_id"`
	ButtonLabel string `json:"button_text"`
	CreatedBy   int64  `json:"created_by"`
}

// contentResponse is a content item with its owning section.
type contentResponse struct {
	Content *model.ContentItem `json:"content"`
	Section *model.Section     `json:"section"`
}

func (s *Server) handleListContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	items, err := s.repo.ListContent(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleAddContent(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	var req addContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	item, err := s.repo.AddContent(r.Context(), model.NewContent{
		SectionID:   sectionID,
		Kind:        model.ContentKind(req.Kind),
		Body:        req.Body,
		MediaRef:    req.MediaRef,
		ButtonLabel: req.ButtonLabel,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	item, sec, err := s.repo.GetContentWithSection(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Content: item, Section: sec})
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	var upd model.ContentUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := s.repo.UpdateContent(r.Context(), id, upd); err != nil {
		s.respondError(w, r, err)
		return
	}
	item, sec, err := s.repo.GetContentWithSection(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Content: item, Section: sec})
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err := s.repo.DeleteContent(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// USERS
// ============================================================================

// activityRequest is the body of POST /users/{uid}/activity.
type activityRequest struct {
	SectionViewed bool `json:"section_viewed"`
	ContentViewed bool `json:"content_viewed"`
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	uid, err := pathID(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	sid, err := pathID(r, "sid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := s.repo.ToggleFavorite(r.Context(), uid, sid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.ToggleResult{"result": res})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	uid, err := pathID(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	sections, err := s.repo.ListFavorites(r.Context(), uid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sections))
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	uid, err := pathID(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	var req activityRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	isNew, err := s.repo.RecordActivity(r.Context(), uid, req.SectionViewed, req.ContentViewed)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"new_user": isNew})
}

// ============================================================================
// STATS AND SEARCH
// ============================================================================

func (s *Server) handleSummaryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.SummaryStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.AdminStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sections, err := s.repo.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sections))
}

// ============================================================================
// EXPORTS
// ============================================================================

// handleExport builds a pack for the user and streams it as the response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	uid, err := pathID(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	resp := &transport.Response{W: w, Filename: strconv.FormatInt(uid, 10) + "_offline_pack.zip"}
	res, err := s.exports.Export(r.Context(), uid, resp)
	if err != nil {
		if resp.Written() {
			// Headers are out; the client sees a truncated body
			s.log.Warn().Err(err).Int64("user", uid).Msg("export stream interrupted")
			return
		}
		s.respondExportError(w, r, err)
		return
	}

	s.log.Info().
		Str("job", res.JobID).
		Int64("user", uid).
		Int("media", res.MediaCount).
		Msg("export streamed")
}

// respondExportError maps pipeline errors to status codes. Failures show the
// generic retry message; details stay in the log.
func (s *Server) respondExportError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, export.ErrExportInProgress):
		writeError(w, http.StatusConflict, "conflict", "an export is already running for this user")
	case errors.Is(err, export.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "exports are limited; try again later")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusConflict, "cancelled", "export was cancelled")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export_failed", export.FailureMessage)
	}
}

func (s *Server) handleCancelExport(w http.ResponseWriter, r *http.Request) {
	uid, err := pathID(r, "uid")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if !s.exports.Cancel(uid) {
		writeError(w, http.StatusNotFound, "not_found", "no export is running for this user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.exports.Job(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown export job")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
