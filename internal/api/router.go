package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every route. The websocket endpoint stays outside request
// logging, whose response writer cannot be hijacked.
func NewRouter(h *Handlers) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.opts.UploadDir)))).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.logRequest)

	authed := func(fn http.HandlerFunc) http.Handler { return h.WithAuth(fn) }
	admin := func(fn http.HandlerFunc) http.Handler { return h.WithAuth(h.RequireAdmin(fn)) }

	// Auth endpoints
	api.HandleFunc("/auth/register", h.HandleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.HandleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.HandleLogout).Methods(http.MethodPost)
	api.Handle("/auth/me", authed(h.HandleMe)).Methods(http.MethodGet)

	// User endpoints
	api.Handle("/users", authed(h.HandleListUsers)).Methods(http.MethodGet)
	api.Handle("/users/heartbeat", authed(h.HandleHeartbeat)).Methods(http.MethodPost)
	api.Handle("/users/{id:[0-9]+}", authed(h.HandleGetUser)).Methods(http.MethodGet)
	api.Handle("/users/{id:[0-9]+}", authed(h.HandleUpdateUser)).Methods(http.MethodPatch)
	api.Handle("/users/{id:[0-9]+}", authed(h.HandleDeleteUser)).Methods(http.MethodDelete)

	// Message endpoints
	api.Handle("/messages/{fromUserId:[0-9]+}/{toUserId:[0-9]+}", authed(h.HandleDirectHistory)).Methods(http.MethodGet)
	api.Handle("/messages/{id:[0-9]+}/read", authed(h.HandleMarkRead)).Methods(http.MethodPatch)
	api.Handle("/messages/{id:[0-9]+}", authed(h.HandleDeleteMessage)).Methods(http.MethodDelete)

	// Group endpoints
	api.Handle("/groups", authed(h.HandleCreateGroup)).Methods(http.MethodPost)
	api.Handle("/groups", authed(h.HandleListGroups)).Methods(http.MethodGet)
	api.Handle("/groups/{id:[0-9]+}", authed(h.HandleGetGroup)).Methods(http.MethodGet)
	api.Handle("/groups/{id:[0-9]+}", authed(h.HandleDeleteGroup)).Methods(http.MethodDelete)
	api.Handle("/groups/{id:[0-9]+}/members", authed(h.HandleGroupMembers)).Methods(http.MethodGet)
	api.Handle("/groups/{id:[0-9]+}/members", authed(h.HandleAddMember)).Methods(http.MethodPost)
	api.Handle("/groups/{id:[0-9]+}/members", authed(h.HandleRemoveMember)).Methods(http.MethodDelete)
	api.Handle("/groups/{id:[0-9]+}/transfer-ownership", authed(h.HandleTransferOwnership)).Methods(http.MethodPost)
	api.Handle("/groups/{id:[0-9]+}/messages", authed(h.HandleGroupHistory)).Methods(http.MethodGet)

	// Game endpoints
	api.Handle("/games", authed(h.HandleListGames)).Methods(http.MethodGet)
	api.Handle("/games", admin(h.HandleCreateGame)).Methods(http.MethodPost)
	api.Handle("/games/{id:[0-9]+}", authed(h.HandleGetGame)).Methods(http.MethodGet)
	api.Handle("/games/{id:[0-9]+}", admin(h.HandleUpdateGame)).Methods(http.MethodPatch)
	api.Handle("/games/{id:[0-9]+}", admin(h.HandleDeleteGame)).Methods(http.MethodDelete)

	// Idea endpoints
	api.Handle("/ideas", authed(h.HandleListIdeas)).Methods(http.MethodGet)
	api.Handle("/ideas", authed(h.HandleCreateIdea)).Methods(http.MethodPost)
	api.Handle("/ideas/{id:[0-9]+}/vote", authed(h.HandleVoteIdea)).Methods(http.MethodPost)
	api.Handle("/ideas/{id:[0-9]+}", authed(h.HandleDeleteIdea)).Methods(http.MethodDelete)

	// Admin endpoints
	api.Handle("/admin/stats", admin(h.HandleStats)).Methods(http.MethodGet)
	api.Handle("/admin/users/{id:[0-9]+}/admin", admin(h.HandleSetAdmin)).Methods(http.MethodPatch)

	api.Handle("/uploads", authed(h.HandleUpload)).Methods(http.MethodPost)

	return h.WithCORS(r)
}
