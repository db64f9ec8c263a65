package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Greg-CLD/stagegate/internal/domain"
	"github.com/Greg-CLD/stagegate/internal/service"
	"github.com/Greg-CLD/stagegate/internal/store"
	"github.com/Greg-CLD/stagegate/internal/webhooks"
)

func (s *Server) decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidParameters, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleFactorsList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"factors": s.catalog.All(),
	})
}

type projectCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (s *Server) handleProjectCreate(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	project, err := s.svc.CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"project": project,
	})
}

func (s *Server) handleProjectList(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
	})
}

func (s *Server) handleProjectGet(w http.ResponseWriter, r *http.Request) {
	project, err := s.svc.GetProject(r.Context(), r.PathValue("projectID"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": project,
	})
}

func (s *Server) handleProjectDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(r.Context(), r.PathValue("projectID")); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
	})
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	params := store.ListParams{
		Stage:  r.URL.Query().Get("stage"),
		Cursor: r.URL.Query().Get("cursor"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidParameters))
			return
		}
		params.Limit = n
	}

	result, err := s.svc.List(r.Context(), r.PathValue("projectID"), params)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks":       result.Tasks,
		"next_cursor": result.NextCursor,
	})
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var fields map[string]interface{}
	if err := s.decodeJSON(r, &fields); err != nil {
		s.writeError(w, err)
		return
	}

	patch, err := service.DecodePatch(fields)
	if err != nil {
		s.writeError(w, err)
		return
	}

	task, err := s.svc.Create(r.Context(), r.PathValue("projectID"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.TaskChanged(webhooks.ActionCreated, *task)
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"task": task,
	})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.Get(r.Context(), r.PathValue("projectID"), r.PathValue("ref"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"task": task,
	})
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	var fields map[string]interface{}
	if err := s.decodeJSON(r, &fields); err != nil {
		s.writeError(w, err)
		return
	}

	patch, err := service.DecodePatch(fields)
	if err != nil {
		s.writeError(w, err)
		return
	}

	task, err := s.svc.Update(r.Context(), r.PathValue("projectID"), r.PathValue("ref"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// A synthesized task carries identical created/updated stamps; an
	// update strictly advances updated_at.
	action := webhooks.ActionUpdated
	if task.CreatedAt.Equal(task.UpdatedAt) {
		action = webhooks.ActionCreated
	}
	s.notifier.TaskChanged(action, *task)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"task": task,
	})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	ref := r.PathValue("ref")

	task, err := s.svc.Get(r.Context(), projectID, ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.svc.Delete(r.Context(), projectID, ref); err != nil {
		s.writeError(w, err)
		return
	}

	s.notifier.TaskChanged(webhooks.ActionDeleted, *task)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
	})
}

func (s *Server) handleTaskPopulate(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Populate(r.Context(), r.PathValue("projectID"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
