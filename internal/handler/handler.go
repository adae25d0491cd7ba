// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Shivanand-hulikatti/event-roster/internal/metrics"
	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/Shivanand-hulikatti/event-roster/internal/repository"
	"github.com/Shivanand-hulikatti/event-roster/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Handler holds the HTTP handlers for events and participants.
type Handler struct {
	events   *service.EventService
	people   *service.ParticipantService
	validate *validator.Validate
}

// New constructs a Handler.
func New(events *service.EventService, people *service.ParticipantService) *Handler {
	return &Handler{
		events:   events,
		people:   people,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router builds the chi router with the global middleware stack.
func Router(h *Handler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(logger))
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Put("/{id}", h.UpdateEvent)
		r.Delete("/{id}", h.DeleteEvent)
		r.Post("/{id}/cancel", h.CancelEvent)
		r.Post("/{id}/organizer", h.AssignOrganizer)
		r.Post("/{id}/participants", h.AddParticipant)
		r.Delete("/{id}/participants/{participantId}", h.RemoveParticipant)
		r.Post("/{id}/speakers", h.AddSpeaker)
		r.Delete("/{id}/speakers/{participantId}", h.RemoveSpeaker)
	})

	r.Route("/participants", func(r chi.Router) {
		r.Post("/", h.CreateParticipant)
		r.Get("/", h.ListParticipants)
		r.Get("/{id}", h.GetParticipant)
		r.Put("/{id}", h.UpdateParticipant)
		r.Delete("/{id}", h.DeleteParticipant)
	})

	return r
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeRequest decodes and validates the body into dst, writing a 400 on
// failure. It reports whether the handler may continue.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, service.ValidationError{Err: err}.Error())
		return false
	}
	return true
}

// writeServiceError maps service and domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr service.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr),
		errors.Is(err, service.ErrDuplicateEvent),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, model.ErrCapacityExceeded),
		errors.Is(err, model.ErrNotTalk),
		errors.Is(err, model.ErrNotOrganizer),
		errors.Is(err, model.ErrNotOrganizing):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeEvent(w http.ResponseWriter, status int, e *model.Event) {
	var view EventView
	h.events.Read(func() { view = newEventView(e) })
	writeJSON(w, status, view)
}

func (h *Handler) writeEvents(w http.ResponseWriter, events []*model.Event) {
	var views []EventView
	h.events.Read(func() { views = newEventViews(events) })
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) writeParticipant(w http.ResponseWriter, status int, p *model.Participant) {
	var view ParticipantView
	h.people.Read(func() { view = newParticipantView(p) })
	writeJSON(w, status, view)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// Creates a talk or a performance depending on "@type".
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	e, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err = h.events.Create(r.Context(), e)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeEvent(w, http.StatusCreated, e)
}

// ListEvents handles GET /events
// Filters: ?location= substring, ?available=true, ?after= date.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var events []*model.Event
	switch {
	case q.Get("location") != "":
		events = h.events.Search(r.Context(), q.Get("location"))
	case q.Get("available") != "":
		available, err := strconv.ParseBool(q.Get("available"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "available must be a boolean")
			return
		}
		if available {
			events = h.events.ListAvailable(r.Context())
		} else {
			events = h.events.List(r.Context())
		}
	case q.Get("after") != "":
		after, err := repository.ParseDate(q.Get("after"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		events = h.events.ListUpcoming(r.Context(), after)
	default:
		events = h.events.List(r.Context())
	}
	h.writeEvents(w, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeEvent(w, http.StatusOK, e)
}

// UpdateEvent handles PUT /events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req UpdateEventRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	date, err := repository.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.events.Update(r.Context(), chi.URLParam(r, "id"), service.EventUpdate{
		Name:     req.Name,
		Date:     date,
		Location: req.Location,
		Capacity: req.Capacity,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeEvent(w, http.StatusOK, e)
}

// DeleteEvent handles DELETE /events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelEvent handles POST /events/{id}/cancel
// With {"organizerId"} the cancellation is made on behalf of that organizer.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	var req OrganizerRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	var (
		e   *model.Event
		err error
	)
	if req.OrganizerID != "" {
		e, err = h.events.CancelAsOrganizer(r.Context(), id, req.OrganizerID)
	} else {
		e, err = h.events.Cancel(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeEvent(w, http.StatusOK, e)
}

// AssignOrganizer handles POST /events/{id}/organizer
func (h *Handler) AssignOrganizer(w http.ResponseWriter, r *http.Request) {
	var req OrganizerRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	if req.OrganizerID == "" {
		writeError(w, http.StatusBadRequest, "organizerId is required")
		return
	}

	e, err := h.events.AssignOrganizer(r.Context(), chi.URLParam(r, "id"), req.OrganizerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeEvent(w, http.StatusOK, e)
}

// AddParticipant handles POST /events/{id}/participants
// Enrolls an existing participant by id, or creates and enrolls an inline one.
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	var p *model.Participant
	if req.ParticipantID != "" {
		stored, err := h.people.Get(r.Context(), req.ParticipantID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		p = stored
	} else {
		p = req.Participant.toModel()
	}

	id := chi.URLParam(r, "id")
	enrolled, err := h.events.AddParticipant(r.Context(), id, p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	e, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if enrolled {
		status = http.StatusCreated
	}
	var resp EnrollmentResponse
	h.events.Read(func() { resp = EnrollmentResponse{Enrolled: enrolled, Event: newEventView(e)} })
	writeJSON(w, status, resp)
}

// RemoveParticipant handles DELETE /events/{id}/participants/{participantId}
// Withdrawing someone who is not enrolled is a no-op.
func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	_, err := h.events.RemoveParticipant(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "participantId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSpeaker handles POST /events/{id}/speakers
func (h *Handler) AddSpeaker(w http.ResponseWriter, r *http.Request) {
	var req SpeakerRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	p, err := h.people.Get(r.Context(), req.ParticipantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.events.AddSpeaker(r.Context(), id, p); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondWithEvent(w, r, id)
}

// RemoveSpeaker handles DELETE /events/{id}/speakers/{participantId}
func (h *Handler) RemoveSpeaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.events.RemoveSpeaker(r.Context(), id, chi.URLParam(r, "participantId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondWithEvent(w, r, id)
}

func (h *Handler) respondWithEvent(w http.ResponseWriter, r *http.Request, id string) {
	e, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeEvent(w, http.StatusOK, e)
}

// ─── Participants ─────────────────────────────────────────────────────────────

// CreateParticipant handles POST /participants
func (h *Handler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req ParticipantRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	p, err := h.people.Create(r.Context(), req.toModel())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeParticipant(w, http.StatusCreated, p)
}

// ListParticipants handles GET /participants
// Filters: ?email= exact match, ?name= substring.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var people []*model.Participant
	switch {
	case q.Get("email") != "":
		p, err := h.people.GetByEmail(r.Context(), q.Get("email"))
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			writeServiceError(w, r, err)
			return
		}
		if p != nil {
			people = append(people, p)
		}
	case q.Get("name") != "":
		people = h.people.Search(r.Context(), q.Get("name"))
	default:
		people = h.people.List(r.Context())
	}

	var views []ParticipantView
	h.people.Read(func() { views = newParticipantViews(people) })
	writeJSON(w, http.StatusOK, views)
}

// GetParticipant handles GET /participants/{id}
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := h.people.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeParticipant(w, http.StatusOK, p)
}

// UpdateParticipant handles PUT /participants/{id}
func (h *Handler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var req UpdateParticipantRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	p, err := h.people.Update(r.Context(), chi.URLParam(r, "id"), service.ParticipantUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeParticipant(w, http.StatusOK, p)
}

// DeleteParticipant handles DELETE /participants/{id}
func (h *Handler) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	if err := h.people.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
