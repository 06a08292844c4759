package users

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/models"
)

// UserStore is the persistence surface the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLocation(ctx context.Context, userID int64, lat, lng float64) (*models.User, error)
	UpdateAvailability(ctx context.Context, userID int64, available bool) (*models.User, error)
}

// EventPublisher publishes driver presence and location events. Nil when
// disabled.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Service handles account registration, login and profile updates. There are
// no sessions or tokens; callers identify themselves by user id.
type Service struct {
	store  UserStore
	events EventPublisher
}

// NewService creates a users service. events may be nil.
func NewService(store UserStore, events EventPublisher) *Service {
	return &Service{store: store, events: events}
}

// Register creates an account. Drivers start available.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: string(hash),
		IsDriver:       req.IsDriver,
		Availability:   req.IsDriver,
		Vehicle:        req.Vehicle,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, common.NewConflictError("username or email already taken")
		}
		return nil, err
	}

	logger.InfoContext(ctx, "user registered",
		zap.Int64("user_id", user.ID),
		zap.Bool("is_driver", user.IsDriver),
	)
	return user, nil
}

// Login verifies the password and returns the account.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	user, err := s.store.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.NewUnauthorizedError("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, common.NewUnauthorizedError("invalid username or password")
	}
	return user, nil
}

// GetUser returns a user's public profile.
func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.NewNotFoundError("user not found", nil)
	}
	return user, nil
}

// UpdateLocation moves the user's position. Driver moves are announced on
// the event bus for downstream consumers.
func (s *Service) UpdateLocation(ctx context.Context, userID int64, lat, lng float64) (*models.User, error) {
	user, err := s.store.UpdateLocation(ctx, userID, lat, lng)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.NewNotFoundError("user not found", nil)
	}

	if user.IsDriver {
		s.publish(ctx, eventbus.SubjectDriverLocationUpdated, eventbus.DriverLocationUpdatedData{
			DriverID:  user.ID,
			Latitude:  lat,
			Longitude: lng,
			Timestamp: time.Now().UTC(),
		})
	}
	return user, nil
}

// UpdateAvailability flips a driver in or out of the candidate pool. Unknown
// users and non-drivers both read as not found.
func (s *Service) UpdateAvailability(ctx context.Context, userID int64, available bool) (*models.User, error) {
	user, err := s.store.UpdateAvailability(ctx, userID, available)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.NewNotFoundError("driver not found", nil)
	}

	subject := eventbus.SubjectDriverOffline
	if available {
		subject = eventbus.SubjectDriverOnline
	}
	s.publish(ctx, subject, map[string]interface{}{
		"driver_id": user.ID,
		"timestamp": time.Now().UTC(),
	})

	logger.InfoContext(ctx, "driver availability changed",
		zap.Int64("driver_id", user.ID),
		zap.Bool("available", available),
	)
	return user, nil
}

func (s *Service) publish(ctx context.Context, subject string, data interface{}) {
	if s.events == nil {
		return
	}
	event, err := eventbus.NewEvent(subject, "users", data)
	if err != nil {
		logger.WarnContext(ctx, "failed to build event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, subject, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
