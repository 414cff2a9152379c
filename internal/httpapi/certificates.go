package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/DaDevFox/task-systems/checkin-core/internal/domain"
)

func (s *Server) handleTrainingCertificate(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	certificate, err := s.app.Certificates.Find(r.Context(), session.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, certificate)
}

// handleVerifyCertificate needs no session so anyone holding a printed certificate can check it
func (s *Server) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	certificate, err := s.app.Certificates.Verify(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":       true,
		"userName":    certificate.UserName,
		"moduleName":  certificate.ModuleName,
		"completedAt": certificate.CompletedAt,
		"issuedAt":    certificate.IssuedAt,
	})
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	session, err := requireRole(r.Context(), domain.RoleAdmin)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var template domain.CertificateTemplate
	if err := decodeBody(w, r, &template); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if err := s.app.Certificates.SaveTemplate(r.Context(), session, &template); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusCreated, template)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if _, err := requireRole(r.Context(), domain.RoleAdmin); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	templates, err := s.app.Certificates.Templates(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if templates == nil {
		templates = []*domain.CertificateTemplate{}
	}

	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleSetDefaultTemplate(w http.ResponseWriter, r *http.Request) {
	session, err := requireRole(r.Context(), domain.RoleAdmin)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	template, err := s.app.Certificates.SetDefault(r.Context(), session, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, template)
}
