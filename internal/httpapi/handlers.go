package httpapi

import (
	"net/http"
	"strings"

	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/Freeeeeet/askgrandpa/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type createRequestBody struct {
	Apprentice   model.Party             `json:"apprentice"`
	Grandpa      model.Party             `json:"grandpa"`
	Subject      string                  `json:"subject"`
	Skill        string                  `json:"skill"`
	Message      string                  `json:"message"`
	Availability model.AvailabilityOffer `json:"availability"`
}

type acceptBody struct {
	ActorID      string                  `json:"actor_id"`
	Response     string                  `json:"response"`
	Availability model.AvailabilityOffer `json:"availability"`
	ProposedTime string                  `json:"proposed_time"`
}

type confirmBody struct {
	ActorID string `json:"actor_id"`
	Message string `json:"message"`
}

type declineBody struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

type sessionResponse struct {
	RequestID string `json:"request_id"`
	service.Session
}

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req, err := h.requests.Create(r.Context(), service.CreateRequestInput{
		Apprentice:   body.Apprentice,
		Grandpa:      body.Grandpa,
		Subject:      body.Subject,
		Skill:        body.Skill,
		Message:      body.Message,
		Availability: body.Availability,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, req)
}

func (h *handler) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.requests.Session(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{RequestID: id, Session: session})
}

func (h *handler) acceptRequest(w http.ResponseWriter, r *http.Request) {
	var body acceptBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req, err := h.requests.Accept(r.Context(), service.AcceptInput{
		RequestID:    chi.URLParam(r, "id"),
		GrandpaID:    body.ActorID,
		Response:     body.Response,
		Availability: body.Availability,
		ProposedTime: body.ProposedTime,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *handler) confirmRequest(w http.ResponseWriter, r *http.Request) {
	var body confirmBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req, err := h.requests.Confirm(r.Context(), service.ConfirmInput{
		RequestID:    chi.URLParam(r, "id"),
		ApprenticeID: body.ActorID,
		Message:      body.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *handler) declineRequest(w http.ResponseWriter, r *http.Request) {
	var body declineBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req, err := h.requests.Decline(r.Context(), service.DeclineInput{
		RequestID: chi.URLParam(r, "id"),
		ActorID:   body.ActorID,
		Reason:    body.Reason,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *handler) completeRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

func (h *handler) listRequests(w http.ResponseWriter, r *http.Request) {
	filter := model.RequestFilter{PartyID: chi.URLParam(r, "partyID")}

	query := r.URL.Query()
	if v := strings.TrimSpace(query.Get("role")); v != "" {
		role, ok := model.ParseRole(v)
		if !ok {
			respondError(w, http.StatusBadRequest, model.NewValidationError("list", "unknown role %q", v))
			return
		}
		filter.Role = role
	}
	if v := strings.TrimSpace(query.Get("status")); v != "" {
		status, ok := model.ParseRequestStatus(v)
		if !ok {
			respondError(w, http.StatusBadRequest, model.NewValidationError("list", "unknown status %q", v))
			return
		}
		filter.Status = status
	}

	requests, err := h.requests.ListForParty(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if requests == nil {
		requests = []*model.Request{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	view, err := h.requests.Sessions(r.Context(), chi.URLParam(r, "partyID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *handler) upsertProfile(w http.ResponseWriter, r *http.Request) {
	var profile model.Profile
	if err := decodeJSON(r, &profile); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	profile.ID = chi.URLParam(r, "id")

	if err := h.profiles.Upsert(r.Context(), &profile); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondError(w, status, err)
}
