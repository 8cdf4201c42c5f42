package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tasnim.dev/cloud-gatekeeper/internal/access"
	"tasnim.dev/cloud-gatekeeper/internal/constants"
	"tasnim.dev/cloud-gatekeeper/internal/logging"
	"tasnim.dev/cloud-gatekeeper/internal/orchestrator"
	"tasnim.dev/cloud-gatekeeper/internal/store"
)

type requestView struct {
	ID              string    `json:"id"`
	RequesterID     string    `json:"requesterId"`
	RequesterEmail  string    `json:"requesterEmail"`
	Project         string    `json:"project"`
	Permissions     []string  `json:"permissions"`
	Status          string    `json:"status"`
	ApproverID      string    `json:"approverId,omitempty"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type outcomeView struct {
	OK         bool      `json:"ok"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

type unprovisionedView struct {
	requestView
	LastOutcome *outcomeView `json:"lastOutcome,omitempty"`
}

func presentRequest(r *access.AccessRequest) requestView {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return requestView{
		ID:              r.ID,
		RequesterID:     r.RequesterID,
		RequesterEmail:  r.RequesterEmail,
		Project:         r.Project,
		Permissions:     perms,
		Status:          string(r.Status),
		ApproverID:      r.ApproverID,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func presentOutcome(o *store.Outcome) *outcomeView {
	if o == nil {
		return nil
	}
	return &outcomeView{OK: o.OK, Detail: o.Detail, RecordedAt: o.RecordedAt}
}

type createRequestBody struct {
	RequesterID string `json:"requesterId"`
	Message     string `json:"message"`
}

type decisionBody struct {
	ApproverID string `json:"approverId"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RequesterID == "" {
		writeMessage(w, http.StatusBadRequest, "requesterId is required")
		return
	}

	req, err := s.gk.Intake(r.Context(), body.RequesterID, body.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, presentRequest(req))
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	var body decisionBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	action, err := orchestrator.ParseAction(body.Action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req, err := s.gk.Decide(r.Context(), orchestrator.DecideInput{
		RequestID:  chi.URLParam(r, "id"),
		ApproverID: body.ApproverID,
		Action:     action,
		Reason:     body.Reason,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presentRequest(req))
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.gk.ListPending(r.Context(), r.URL.Query().Get("viewerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, presentRequest(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendingRequests": views})
}

func (s *Server) listUnprovisioned(w http.ResponseWriter, r *http.Request) {
	items, err := s.gk.ListUnprovisioned(r.Context(), r.URL.Query().Get("viewerId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]unprovisionedView, 0, len(items))
	for _, item := range items {
		views = append(views, unprovisionedView{
			requestView: presentRequest(item.Request),
			LastOutcome: presentOutcome(item.LastOutcome),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"unprovisionedRequests": views})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.apiToken)) != 1 {
				writeMessage(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, orchestrator.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, access.ErrSelfApproval):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log := logging.FromContext(r.Context())
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeMessage(w, status, "internal server error")
		return
	}
	writeMessage(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
