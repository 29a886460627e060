package programs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/antibyte/retrocalc/pkg/auth"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/tibasic"
)

const maxUploadBytes = 64 << 10

// Handler serves the program library API.
type Handler struct {
	store *Store
}

// NewHandler returns the HTTP API for store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/programs", auth.WithCORS("GET, POST", h.handleCollection))
	mux.HandleFunc("/api/programs/{name}", auth.WithCORS("GET, DELETE", h.handleItem))
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		auth.RequireAdmin(h.save)(w, r)
	default:
		auth.RespondError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodDelete:
		auth.RequireAdmin(h.delete)(w, r)
	default:
		auth.RespondError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		logger.Error(logger.AreaPrograms, "list failed: %v", err)
		auth.RespondError(w, "could not list programs", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []Program{}
	}
	auth.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		h.respondStoreError(w, err)
		return
	}
	auth.RespondJSON(w, http.StatusOK, p)
}

type saveRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// compileError is returned when an uploaded program does not compile.
type compileError struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
	Line     int    `json:"line,omitempty"`
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		auth.RespondError(w, "invalid request format", http.StatusBadRequest)
		return
	}

	p, err := h.store.Save(r.Context(), Program{Name: req.Name, Description: req.Description, Source: req.Source})
	if err != nil {
		var berr *tibasic.Error
		if errors.As(err, &berr) {
			auth.RespondJSON(w, http.StatusUnprocessableEntity, compileError{
				Message:  berr.Error(),
				Category: berr.Category,
				Line:     berr.Line,
			})
			return
		}
		h.respondStoreError(w, err)
		return
	}
	logger.Info(logger.AreaPrograms, "program %s saved by %s", p.Name, auth.ClientIP(r))
	auth.RespondJSON(w, http.StatusCreated, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("name")); err != nil {
		h.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidName):
		auth.RespondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		auth.RespondError(w, err.Error(), http.StatusNotFound)
	default:
		logger.Error(logger.AreaPrograms, "store error: %v", err)
		auth.RespondError(w, "internal error", http.StatusInternalServerError)
	}
}
