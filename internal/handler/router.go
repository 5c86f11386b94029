package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	allowedOrigins []string,
	authHandler *AuthHandler,
	entitlementHandler *EntitlementHandler,
	challengeHandler *ChallengeHandler,
	eventHandler *EventHandler,
	authMiddleware func(http.Handler) http.Handler,
) http.Handler {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "careerprep"})
	}).Methods(http.MethodGet)

	// Protected routes (require authentication)
	protected := router.PathPrefix("/api/v1").Subrouter()
	protected.Use(authMiddleware)
	// Without this the subrouter reports a wrong method as 404.
	protected.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	protected.HandleFunc("/auth/profile", authHandler.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/auth/validate", authHandler.ValidateToken).Methods(http.MethodGet)

	protected.HandleFunc("/entitlements/{feature}", entitlementHandler.Check).Methods(http.MethodGet)
	protected.HandleFunc("/features/{feature}/use", entitlementHandler.Use).Methods(http.MethodPost)
	protected.HandleFunc("/usage", entitlementHandler.Summary).Methods(http.MethodGet)

	protected.HandleFunc("/challenge", challengeHandler.State).Methods(http.MethodGet)
	protected.HandleFunc("/challenge/today", challengeHandler.Today).Methods(http.MethodGet)
	protected.HandleFunc("/challenge/begin", challengeHandler.Begin).Methods(http.MethodPost)
	protected.HandleFunc("/challenge/answer", challengeHandler.UpdateAnswer).Methods(http.MethodPut)
	protected.HandleFunc("/challenge/submit", challengeHandler.Submit).Methods(http.MethodPost)
	protected.HandleFunc("/challenge/others-solutions", challengeHandler.OthersSolutions).Methods(http.MethodGet)

	protected.HandleFunc("/events", eventHandler.Stream).Methods(http.MethodGet)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders: []string{
			"Link",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
