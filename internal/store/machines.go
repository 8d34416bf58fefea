package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/schedule"
)

// CreateMachine validates m, derives its schedule fields and inserts it.
// m.ID is assigned when empty.
func (s *gormStore) CreateMachine(ctx context.Context, m *model.Machine) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.prepare(m); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create machine %s: %w", m.ID, err)
	}
	return nil
}

// GetMachine loads a machine by ID.
func (s *gormStore) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	var m model.Machine
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMachines returns machines ordered by name.
func (s *gormStore) ListMachines(ctx context.Context, filter MachineFilter) ([]model.Machine, error) {
	q := s.db.WithContext(ctx).Order("name ASC").Order("id ASC")
	if filter.Location != "" {
		q = q.Where("location = ?", filter.Location)
	}
	var machines []model.Machine
	if err := q.Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

// UpdateMachine loads the machine, applies the change and writes it back in one
// transaction. The schedule is recomputed before the write; if that fails
// nothing is written.
func (s *gormStore) UpdateMachine(ctx context.Context, id string, apply func(m *model.Machine) error) (*model.Machine, error) {
	var updated model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		createdBy, createdAt := updated.CreatedBy, updated.CreatedAt
		if err := apply(&updated); err != nil {
			return err
		}
		// Identity and ownership are not client-editable.
		updated.ID, updated.CreatedBy, updated.CreatedAt = id, createdBy, createdAt
		if err := s.prepare(&updated); err != nil {
			return err
		}
		if err := tx.Save(&updated).Error; err != nil {
			return fmt.Errorf("failed to update machine %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteMachine removes a machine and its subscription links.
func (s *gormStore) DeleteMachine(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM subscription_machine_mapping WHERE machine_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to unlink subscriptions for machine %s: %w", id, err)
		}
		res := tx.Delete(&model.Machine{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete machine %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// prepare validates m and recomputes its derived schedule fields.
func (s *gormStore) prepare(m *model.Machine) error {
	if err := validateMachine(m); err != nil {
		return err
	}
	if m.Location != model.LocationVehicle {
		m.VehicleNumber = ""
		m.Capacity = nil
	}
	err := schedule.Recompute(m, s.clock.Now())
	s.metrics.ObserveRecompute(err)
	return err
}

func validateMachine(m *model.Machine) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMachine)
	}
	if !m.Location.Valid() {
		return fmt.Errorf("%w: unknown location %q", ErrInvalidMachine, m.Location)
	}
	return nil
}
