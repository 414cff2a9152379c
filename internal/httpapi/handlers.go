package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
	"github.com/DaDevFox/task-systems/checkin-core/internal/service"
	"github.com/DaDevFox/task-systems/checkin-core/internal/workflow"
)

const maxBodyBytes = 64 * 1024

type targetRequest struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	StartTime       *time.Time `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationMinutes int        `json:"durationMinutes"`
	ContentURL      string     `json:"contentUrl"`
	Points          int        `json:"points"`
	Category        string     `json:"category"`
	ValidFor        string     `json:"validFor"`
}

type issuedResponse struct {
	Target  *domain.Target  `json:"target"`
	Payload *domain.Payload `json:"payload"`
	Text    string          `json:"text"`
	Image   string          `json:"image"`
}

type scanRequest struct {
	Raw string `json:"raw"`
}

type assessmentRequest struct {
	Raw         string `json:"raw"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
	EvidenceURL string `json:"evidenceUrl"`
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	session, err := requireRole(r.Context(), domain.RoleAdmin)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	kind, err := kindVar(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req targetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	validFor, err := parseValidFor(req.ValidFor)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	issued, err := s.app.Generator.Generate(r.Context(), session, service.TargetSpec{
		Kind:            kind,
		ID:              req.ID,
		Name:            req.Name,
		Description:     req.Description,
		Location:        req.Location,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		ContentURL:      req.ContentURL,
		Points:          req.Points,
		Category:        req.Category,
		ValidFor:        validFor,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, issuedResponse{
		Target:  issued.Target,
		Payload: &issued.Code.Payload,
		Text:    issued.Code.Text,
		Image:   issued.Code.DataURI(),
	})
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	if _, err := requireRole(r.Context(), domain.RoleAdmin); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	kind, err := kindVar(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	targets, err := s.app.Generator.Targets(r.Context(), kind)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if targets == nil {
		targets = []*domain.Target{}
	}

	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleTargetQR(w http.ResponseWriter, r *http.Request) {
	session, err := requireRole(r.Context(), domain.RoleAdmin)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	kind, err := kindVar(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	validFor, err := parseValidFor(r.URL.Query().Get("validFor"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	issued, err := s.app.Generator.Regenerate(r.Context(), session, kind, mux.Vars(r)["id"], validFor)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(issued.Code.PNG); err != nil {
		s.logger.WithError(err).Warn("failed to write QR image")
	}
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	kind, err := kindVar(r)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req scanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	result := s.app.Scans.Process(r.Context(), session, kind, req.Raw)
	status := http.StatusOK
	if !result.Accepted {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handleAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	records, err := s.app.Repo.ListAttendance(r.Context(), session.UserID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []*domain.AttendanceRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleCompleteTraining(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	outcome, err := s.app.Training.Complete(r.Context(), session, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleRecordAssessment(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req assessmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	payload, rejected := s.app.Scans.Validate(domain.KindCompetency, req.Raw)
	if rejected != nil {
		writeJSON(w, http.StatusUnprocessableEntity, rejected)
		return
	}

	outcome, err := s.app.Competency.RecordAssessment(r.Context(), session, payload, workflow.Assessment{
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		Status:      domain.AssessmentStatus(strings.ToLower(strings.TrimSpace(req.Status))),
		Notes:       req.Notes,
		EvidenceURL: req.EvidenceURL,
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"operation":     "record_assessment",
			"competency_id": payload.TargetID,
		}).WithError(err).Debug("assessment refused")
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, outcome)
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	total, err := s.app.Participation.TotalPoints(r.Context(), session.UserID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":      session.UserID,
		"totalPoints": total,
	})
}

func kindVar(r *http.Request) (domain.Kind, error) {
	kind, err := domain.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return kind, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidInput, err)
	}
	return nil
}

// parseValidFor reads a Go duration; "never" issues a code without expiry and
// empty defers to the server default
func parseValidFor(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return 0, nil
	case "never":
		return -1, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: validFor must be a positive duration or \"never\"", errInvalidInput)
	}
	return d, nil
}
