package payment

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// Server handles HTTP requests for cases and payments
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			// Ensure CORS headers are set before error response
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="UPI Tracker"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	// API endpoints - cases (most specific paths first)
	s.mux.HandleFunc("GET /api/cases/{id}/export.csv", s.requireAuth(s.handleExportCase))
	s.mux.HandleFunc("POST /api/cases/{id}/payments", s.requireAuth(s.handleUploadReceipt))
	s.mux.HandleFunc("GET /api/cases/{id}/notes", s.requireAuth(s.handleListNotes))
	s.mux.HandleFunc("POST /api/cases/{id}/notes", s.requireAuth(s.handleAddNote))
	s.mux.HandleFunc("GET /api/cases/{id}", s.requireAuth(s.handleGetCase))
	s.mux.HandleFunc("PUT /api/cases/{id}", s.requireAuth(s.handleUpdateCase))
	s.mux.HandleFunc("DELETE /api/cases/{id}", s.requireAuth(s.handleDeleteCase))
	s.mux.HandleFunc("GET /api/cases", s.requireAuth(s.handleListCases))
	s.mux.HandleFunc("POST /api/cases", s.requireAuth(s.handleCreateCase))

	// API endpoints - payments
	s.mux.HandleFunc("GET /api/payments/{id}/file", s.requireAuth(s.handleGetPaymentFile))
	s.mux.HandleFunc("POST /api/payments/{id}/rescan", s.requireAuth(s.handleRescanPayment))
	s.mux.HandleFunc("GET /api/payments/{id}", s.requireAuth(s.handleGetPayment))
	s.mux.HandleFunc("PATCH /api/payments/{id}", s.requireAuth(s.handleUpdatePayment))
	s.mux.HandleFunc("DELETE /api/payments/{id}", s.requireAuth(s.handleDeletePayment))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /", s.requireAuth(s.handleIndex))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	// Wrap the mux with CORS middleware to handle all requests including OPTIONS
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
