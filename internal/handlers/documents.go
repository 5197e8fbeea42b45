package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/MuhammadAbdiel/aora-app/internal/api"
	"github.com/MuhammadAbdiel/aora-app/internal/logging"
	"github.com/MuhammadAbdiel/aora-app/internal/models"
	"github.com/MuhammadAbdiel/aora-app/internal/remote"
	"github.com/MuhammadAbdiel/aora-app/internal/repositories"
)

// DocumentHandler serves collection documents.
type DocumentHandler struct {
	Documents DocumentStore
	Sessions  SessionManager
	NowFunc   func() time.Time
}

// Create handles POST /v1/databases/{databaseId}/collections/{collectionId}/documents.
func (h DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if _, ok := requireSession(w, r, h.Sessions); !ok {
		return
	}

	vars := mux.Vars(r)
	var req api.CreateDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid document payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "invalid request body")
		return
	}

	data := make(map[string]any, len(req.Data))
	for k, v := range req.Data {
		if k == "" || strings.HasPrefix(k, "$") {
			respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "attribute names must not be empty or start with '$'")
			return
		}
		data[k] = v
	}

	now := h.now()
	doc := models.Document{
		ID:           remote.ResolveID(req.DocumentID),
		DatabaseID:   vars["databaseId"],
		CollectionID: vars["collectionId"],
		Data:         data,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Documents.Create(ctx, doc); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, api.TypeConflict, "Document with the requested ID already exists.")
			return
		}
		logger.Error("document create failed", "error", err, "collectionId", doc.CollectionID)
		respondInternal(ctx, w, "failed to create document")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, api.NewDocument(doc))
}

// List handles GET /v1/databases/{databaseId}/collections/{collectionId}/documents.
// Each queries[] parameter carries one JSON-encoded query.
func (h DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	vars := mux.Vars(r)

	raw := r.URL.Query()[api.QueriesParam]
	queries := make([]remote.Query, 0, len(raw))
	for _, encoded := range raw {
		var q remote.Query
		if err := json.Unmarshal([]byte(encoded), &q); err != nil {
			respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, "invalid query: "+encoded)
			return
		}
		queries = append(queries, q)
	}

	plan, err := remote.Compile(queries)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, api.TypeInvalidArgument, err.Error())
		return
	}

	docs, err := h.Documents.List(ctx, vars["databaseId"], vars["collectionId"], plan)
	if err != nil {
		logger.Error("document list failed", "error", err, "collectionId", vars["collectionId"])
		respondInternal(ctx, w, "failed to list documents")
		return
	}

	out := api.DocumentList{Total: len(docs), Documents: make([]api.Document, 0, len(docs))}
	for _, doc := range docs {
		out.Documents = append(out.Documents, api.NewDocument(doc))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

func (h DocumentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
