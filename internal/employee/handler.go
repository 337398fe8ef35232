package employee

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payroll-engine/internal/auth"
	"github.com/frahmantamala/payroll-engine/internal/compensation"
	"github.com/frahmantamala/payroll-engine/internal/transport"
)

type ServiceAPI interface {
	CreateEmployee(dto CreateEmployeeDTO) (*Employee, error)
	GetEmployee(id int64) (*Employee, error)
	ListEmployees(organizationID int64, limit, offset int) ([]*Employee, error)
}

type CompensationAPI interface {
	SetCompensation(dto compensation.CreateCompensationDTO) (*compensation.Compensation, error)
	History(employeeID int64) ([]*compensation.Compensation, error)
}

// Handler serves the employee directory plus the compensation sub-resource.
type Handler struct {
	*transport.BaseHandler
	Service       ServiceAPI
	Compensations CompensationAPI
}

func NewHandler(service ServiceAPI, compensations CompensationAPI) *Handler {
	return &Handler{
		BaseHandler:   transport.NewBaseHandler(nil),
		Service:       service,
		Compensations: compensations,
	}
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var dto CreateEmployeeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("CreateEmployee: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	emp, err := h.Service.CreateEmployee(dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, emp)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := employeeIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	emp, err := h.Service.GetEmployee(id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, emp)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok || user == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := 50, 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	employees, err := h.Service.ListEmployees(user.OrganizationID, limit, offset)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, employees)
}

// SetCompensation records a new current compensation for the employee in the
// URL; the body's employee_id is overridden by the path parameter.
func (h *Handler) SetCompensation(w http.ResponseWriter, r *http.Request) {
	id, err := employeeIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	var dto compensation.CreateCompensationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("SetCompensation: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dto.EmployeeID = id

	comp, err := h.Compensations.SetCompensation(dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, comp)
}

func (h *Handler) CompensationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := employeeIDParam(r)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid employee id")
		return
	}

	history, err := h.Compensations.History(id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmployeeNotFound):
		h.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, compensation.ErrNoCurrentRecord):
		h.WriteError(w, http.StatusNotFound, err.Error())
	default:
		h.BaseHandler.HandleServiceError(w, err)
	}
}

func employeeIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
