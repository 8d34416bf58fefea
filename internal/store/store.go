package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"greenhouse-backend/internal/metrics"
	"greenhouse-backend/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidMachine is returned when a machine fails field validation.
	ErrInvalidMachine = errors.New("invalid machine")
)

// Clock provides "now" for schedule recomputation.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MachineFilter narrows ListMachines. Zero values match everything.
type MachineFilter struct {
	Location model.Location
}

// Store defines the interface for all database operations.
type Store interface {
	CreateMachine(ctx context.Context, m *model.Machine) error
	GetMachine(ctx context.Context, id string) (*model.Machine, error)
	ListMachines(ctx context.Context, filter MachineFilter) ([]model.Machine, error)
	UpdateMachine(ctx context.Context, id string, apply func(m *model.Machine) error) (*model.Machine, error)
	DeleteMachine(ctx context.Context, id string) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	RecipientEmail(ctx context.Context, userID string) (string, error)

	PutSubscription(ctx context.Context, sub *model.PushSubscription, machineIDs []string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForMachine(ctx context.Context, machineID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db      *gorm.DB
	clock   Clock
	metrics *metrics.Metrics
}

// Option configures the store.
type Option func(*gormStore)

// WithClock overrides the clock used when recomputing schedules.
func WithClock(clock Clock) Option {
	return func(s *gormStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics records schedule recomputations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *gormStore) {
		s.metrics = m
	}
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, opts ...Option) Store {
	s := &gormStore{db: db, clock: systemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
