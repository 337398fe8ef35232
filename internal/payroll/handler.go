package payroll

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payroll-engine/internal/auth"
	"github.com/frahmantamala/payroll-engine/internal/transport"
)

type ServiceAPI interface {
	CreateRun(actor *auth.User, dto CreateRunDTO) (*Run, error)
	Calculate(actor *auth.User, runID int64) (*Run, error)
	Approve(actor *auth.User, runID int64) (*Run, error)
	Process(actor *auth.User, runID int64) (*Run, error)
	GetRun(actor *auth.User, runID int64) (*Run, error)
	ListRuns(actor *auth.User, limit, offset int) ([]*Run, error)
	ListItems(actor *auth.User, runID int64) ([]*Item, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(nil),
		Service:     service,
	}
}

func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateRunDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateRun: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := h.Service.CreateRun(user, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, run)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := pagination(r)
	runs, err := h.Service.ListRuns(user, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, h.Service.GetRun, http.StatusOK)
}

// Calculate triggers a full recompute of every item and the run totals.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, h.Service.Calculate, http.StatusOK)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, h.Service.Approve, http.StatusOK)
}

func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, h.Service.Process, http.StatusOK)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	runID, err := runIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	items, err := h.Service.ListItems(user, runID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) runAction(w http.ResponseWriter, r *http.Request, action func(*auth.User, int64) (*Run, error), status int) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	runID, err := runIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := action(user, runID)
	if err != nil {
		h.Logger.Error("payroll run action failed", "error", err, "run_id", runID, "user_id", user.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, status, run)
}

// HandleServiceError maps payroll domain errors before falling back to the
// shared translation.
func (h *Handler) HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRunNotFound):
		h.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRunStatus):
		h.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrWrongOrganization):
		h.WriteError(w, http.StatusForbidden, err.Error())
	default:
		h.BaseHandler.HandleServiceError(w, err)
	}
}

func runIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
