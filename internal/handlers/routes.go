package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MuhammadAbdiel/aora-app/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts     AccountStore
	Sessions     SessionManager
	Documents    DocumentStore
	Files        FileStore
	Objects      ObjectStore
	LoginLimiter middleware.RateLimiter
	Health       map[string]Pinger
}

// RegisterRoutes wires HTTP handlers into the provided router.
func RegisterRoutes(router *mux.Router, deps Dependencies) {
	health := HealthHandler{Checks: deps.Health}
	accounts := AccountHandler{Accounts: deps.Accounts, Sessions: deps.Sessions}
	documents := DocumentHandler{Documents: deps.Documents, Sessions: deps.Sessions}
	files := FileHandler{Files: deps.Files, Objects: deps.Objects, Sessions: deps.Sessions}
	avatars := AvatarHandler{}

	router.HandleFunc("/healthz", health.Handle).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.Metrics)

	v1.HandleFunc("/account", accounts.Create).Methods(http.MethodPost)
	v1.HandleFunc("/account", accounts.Get).Methods(http.MethodGet)
	v1.Handle("/account/sessions/email",
		middleware.Limit(deps.LoginLimiter, "session")(http.HandlerFunc(accounts.CreateEmailSession)),
	).Methods(http.MethodPost)
	v1.HandleFunc("/account/sessions/{sessionId}", accounts.DeleteSession).Methods(http.MethodDelete)

	v1.HandleFunc("/databases/{databaseId}/collections/{collectionId}/documents", documents.Create).Methods(http.MethodPost)
	v1.HandleFunc("/databases/{databaseId}/collections/{collectionId}/documents", documents.List).Methods(http.MethodGet)

	v1.HandleFunc("/storage/buckets/{bucketId}/files", files.Create).Methods(http.MethodPost)
	v1.HandleFunc("/storage/buckets/{bucketId}/files/{fileId}", files.Delete).Methods(http.MethodDelete)
	v1.HandleFunc("/storage/buckets/{bucketId}/files/{fileId}/view", files.View).Methods(http.MethodGet)
	v1.HandleFunc("/storage/buckets/{bucketId}/files/{fileId}/preview", files.Preview).Methods(http.MethodGet)

	v1.HandleFunc("/avatars/initials", avatars.Initials).Methods(http.MethodGet)
}
