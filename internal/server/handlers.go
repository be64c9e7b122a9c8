package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/studlancer/studlancer/internal/db"
	"github.com/studlancer/studlancer/internal/queue"
	"github.com/studlancer/studlancer/internal/schema"
)

type contextKey string

const userKey contextKey = "user"

// withAuth resolves the bearer token and stashes the user id in the
// request context. Requests without a token are rejected.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.resolve(token)
		if err != nil || user == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := contextWithUser(r.Context(), user)
		next(w, r.WithContext(ctx))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var doc schema.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid document payload")
		return
	}
	doc.CreatorID = userFrom(r)
	doc.SetDefaults()

	if err := s.database.CreateDocument(r.Context(), &doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.broadcastEvent(EventLifecycle, DocumentEventData{
		DocumentID: doc.ID, Action: "created", Owner: doc.CreatorID,
	})
	writeJSON(w, http.StatusCreated, &doc)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := s.database.GetDocument(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document does not exist")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUpdateAttributes accepts one serialized transaction batch (the
// queue wire format) and applies it as conditional updates. The response
// carries a single success flag: false means the batch was rejected and
// nothing was applied.
func (s *Server) handleUpdateAttributes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	batch, err := queue.Decode(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.database.ApplyBatch(r.Context(), userFrom(r), batch)
	if errors.Is(err, db.ErrConditionFailed) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for _, id := range batch.Documents() {
		s.broadcastEvent(EventDocumentUpdate, DocumentEventData{
			DocumentID: id, Action: "updated", Owner: userFrom(r),
		})
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pub, err := s.database.Publish(r.Context(), userFrom(r), id, time.Now())
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "document does not exist")
		return
	case errors.Is(err, db.ErrConditionFailed):
		writeError(w, http.StatusConflict, "document cannot be published")
		return
	case err != nil:
		// Validation failures come back as readable messages and must
		// not mutate anything.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.broadcastEvent(EventLifecycle, DocumentEventData{
		DocumentID: id, Action: "published", Owner: userFrom(r),
	})
	writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.database.Unpublish(r.Context(), userFrom(r), id, time.Now())
	switch {
	case errors.Is(err, db.ErrUnpublishNotAllowed):
		writeError(w, http.StatusConflict, "publish can no longer be reverted")
		return
	case errors.Is(err, db.ErrConditionFailed):
		writeError(w, http.StatusConflict, "document is not published")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastEvent(EventLifecycle, DocumentEventData{
		DocumentID: id, Action: "unpublished", Owner: userFrom(r),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleTrash(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, "trashed", func(owner, id string) error {
		return s.database.Trash(r.Context(), owner, id, time.Now())
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, "restored", func(owner, id string) error {
		return s.database.Restore(r.Context(), owner, id, time.Now())
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, "deleted", func(owner, id string) error {
		return s.database.DeletePermanently(r.Context(), owner, id)
	})
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, action string, op func(owner, id string) error) {
	id := r.PathValue("id")
	err := op(userFrom(r), id)
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "document does not exist")
		return
	case errors.Is(err, db.ErrConditionFailed):
		writeError(w, http.StatusConflict, "document is not in a state that allows this")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.broadcastEvent(EventLifecycle, DocumentEventData{
		DocumentID: id, Action: action, Owner: userFrom(r),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.database.RecordView(r.Context(), userFrom(r), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document does not exist")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	entries, err := s.database.Workspace(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []schema.WorkspaceEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
