package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/mw"
	"greenhouse-backend/internal/parse"
	"greenhouse-backend/internal/schedule"
	"greenhouse-backend/internal/store"
)

// machineRequest is the body of POST, PUT and PATCH. Absent fields are nil so
// PATCH can tell "not sent" from "cleared".
type machineRequest struct {
	Name               *string        `json:"name"`
	CostItems          *[]json.Number `json:"costItems"`
	Parts              *[]string      `json:"parts"`
	Description        *string        `json:"description"`
	Location           *string        `json:"location"`
	LastRepairDate     *string        `json:"lastRepairDate"`
	RepairIntervalDays *json.Number   `json:"repairIntervalDays"`
	VehicleNumber      *string        `json:"vehicleNumber"`
	Capacity           *float64       `json:"capacity"`
}

// machineResponse carries the schedule evaluated at read time; the stored
// remainingDays is only a write-time snapshot.
type machineResponse struct {
	model.Machine
	NextRepairDate time.Time     `json:"nextRepairDate"`
	RemainingDays  int           `json:"remainingDays"`
	Status         schedule.Band `json:"status,omitempty"`
}

func (r *machineRequest) requireAnchors() error {
	switch {
	case r.Name == nil || *r.Name == "":
		return fmt.Errorf("%w: name is required", store.ErrInvalidMachine)
	case r.Location == nil:
		return fmt.Errorf("%w: location is required", store.ErrInvalidMachine)
	case r.LastRepairDate == nil:
		return fmt.Errorf("%w: lastRepairDate is required", parse.ErrInvalidDate)
	case r.RepairIntervalDays == nil:
		return fmt.Errorf("%w: repairIntervalDays is required", parse.ErrInvalidInterval)
	}
	return nil
}

// apply copies the fields present in r onto m.
func (r *machineRequest) apply(m *model.Machine, loc *time.Location) error {
	if r.Name != nil {
		m.Name = *r.Name
	}
	if r.Description != nil {
		m.Description = *r.Description
	}
	if r.Location != nil {
		m.Location = model.Location(*r.Location)
	}
	if r.Parts != nil {
		m.Parts = *r.Parts
	}
	if r.CostItems != nil {
		costs, err := parse.ParseCostItems(*r.CostItems)
		if err != nil {
			return err
		}
		m.CostItems = costs
	}
	if r.LastRepairDate != nil {
		last, err := parse.ParseDate(*r.LastRepairDate, loc)
		if err != nil {
			return err
		}
		m.LastRepairDate = last
	}
	if r.RepairIntervalDays != nil {
		days, err := parse.ParseInterval(*r.RepairIntervalDays)
		if err != nil {
			return err
		}
		m.RepairIntervalDays = days
	}
	if r.VehicleNumber != nil {
		m.VehicleNumber = *r.VehicleNumber
	}
	if r.Capacity != nil {
		capacity := *r.Capacity
		m.Capacity = &capacity
	}
	return nil
}

func (h *Handler) bindMachine(c *gin.Context) (*machineRequest, bool) {
	var req machineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return nil, false
	}
	return &req, true
}

func (h *Handler) respond(m model.Machine, now time.Time) machineResponse {
	resp := machineResponse{
		Machine:        m,
		NextRepairDate: m.NextRepairDate,
		RemainingDays:  m.RemainingDays,
	}
	st, err := schedule.Live(&m, now)
	if err != nil {
		h.logger.Warn("stored machine has invalid schedule anchors",
			zap.String("machine_id", m.ID), zap.Error(err))
		return resp
	}
	resp.NextRepairDate = st.NextRepairDate
	resp.RemainingDays = st.RemainingDays
	resp.Status = st.Band
	return resp
}

// ListMachines handles GET /api/machines?location=&status=.
func (h *Handler) ListMachines(c *gin.Context) {
	var filter store.MachineFilter
	if raw := c.Query("location"); raw != "" {
		loc := model.Location(raw)
		if !loc.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown location " + raw})
			return
		}
		filter.Location = loc
	}
	var band schedule.Band
	if raw := c.Query("status"); raw != "" {
		b, ok := schedule.ParseBand(raw)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status " + raw})
			return
		}
		band = b
	}

	machines, err := h.store.ListMachines(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	now := h.clock.Now()
	responses := make([]machineResponse, 0, len(machines))
	for _, m := range machines {
		resp := h.respond(m, now)
		if band != "" && resp.Status != band {
			continue
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}

// GetMachine handles GET /api/machines/:id.
func (h *Handler) GetMachine(c *gin.Context) {
	m, err := h.store.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.respond(*m, h.clock.Now()))
}

// CreateMachine handles POST /api/machines.
func (h *Handler) CreateMachine(c *gin.Context) {
	req, ok := h.bindMachine(c)
	if !ok {
		return
	}
	if err := req.requireAnchors(); err != nil {
		h.writeError(c, err)
		return
	}

	m := &model.Machine{CreatedBy: mw.Subject(c)}
	if err := req.apply(m, h.loc); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.store.CreateMachine(c.Request.Context(), m); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("machine created", zap.String("machine_id", m.ID), zap.String("name", m.Name))
	c.JSON(http.StatusCreated, h.respond(*m, h.clock.Now()))
}

// ReplaceMachine handles PUT /api/machines/:id. Every anchor must be sent;
// optional fields not sent are cleared.
func (h *Handler) ReplaceMachine(c *gin.Context) {
	req, ok := h.bindMachine(c)
	if !ok {
		return
	}
	if err := req.requireAnchors(); err != nil {
		h.writeError(c, err)
		return
	}
	h.update(c, func(m *model.Machine) error {
		*m = model.Machine{ID: m.ID, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
		return req.apply(m, h.loc)
	})
}

// PatchMachine handles PATCH /api/machines/:id. Only the fields sent change,
// and the schedule is recomputed even when neither anchor was sent.
func (h *Handler) PatchMachine(c *gin.Context) {
	req, ok := h.bindMachine(c)
	if !ok {
		return
	}
	h.update(c, func(m *model.Machine) error {
		return req.apply(m, h.loc)
	})
}

func (h *Handler) update(c *gin.Context, apply func(m *model.Machine) error) {
	m, err := h.store.UpdateMachine(c.Request.Context(), c.Param("id"), apply)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("machine updated",
		zap.String("machine_id", m.ID),
		zap.Time("next_repair_date", m.NextRepairDate))
	c.JSON(http.StatusOK, h.respond(*m, h.clock.Now()))
}

// DeleteMachine handles DELETE /api/machines/:id.
func (h *Handler) DeleteMachine(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteMachine(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("machine deleted", zap.String("machine_id", id))
	c.Status(http.StatusNoContent)
}
