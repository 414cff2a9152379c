package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/qrcode"
	"github.com/DaDevFox/task-systems/checkin-core/internal/repository"
	"github.com/DaDevFox/task-systems/checkin-core/internal/service"
	"github.com/DaDevFox/task-systems/checkin-core/internal/workflow"
)

// Server exposes the check-in services over HTTP
type Server struct {
	app    *service.App
	logger *logrus.Logger
}

// NewServer creates a new HTTP server around app
func NewServer(app *service.App, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{app: app, logger: logger}
}

// Router builds the route table
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, sessionMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/targets/{kind}", s.handleCreateTarget).Methods("POST")
	admin.HandleFunc("/targets/{kind}", s.handleListTargets).Methods("GET")
	admin.HandleFunc("/targets/{kind}/{id}/qr.png", s.handleTargetQR).Methods("GET")
	admin.HandleFunc("/certificate-templates", s.handleSaveTemplate).Methods("POST")
	admin.HandleFunc("/certificate-templates", s.handleListTemplates).Methods("GET")
	admin.HandleFunc("/certificate-templates/{id}/default", s.handleSetDefaultTemplate).Methods("POST")

	r.HandleFunc("/scan/{kind}", s.handleScan).Methods("POST")
	r.HandleFunc("/attendance", s.handleAttendanceHistory).Methods("GET")
	r.HandleFunc("/training/{id}/complete", s.handleCompleteTraining).Methods("POST")
	r.HandleFunc("/training/{id}/certificate", s.handleTrainingCertificate).Methods("GET")
	r.HandleFunc("/certificates/verify/{code}", s.handleVerifyCertificate).Methods("GET")
	r.HandleFunc("/competency/assessments", s.handleRecordAssessment).Methods("POST")
	r.HandleFunc("/participation/points", s.handlePoints).Methods("GET")

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	if msg := workflow.UserMessage(err); msg != "" {
		resp.Message = msg
	}
	writeJSON(w, status, resp)
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoSession), errors.Is(err, workflow.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden), errors.Is(err, workflow.ErrNotAssessor):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyExists), errors.Is(err, workflow.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, errInvalidInput),
		errors.Is(err, errInvalidRole),
		errors.Is(err, service.ErrInvalidTarget),
		errors.Is(err, qrcode.ErrInvalidInput),
		errors.Is(err, workflow.ErrInvalidAssessment),
		errors.Is(err, workflow.ErrInvalidTemplate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
