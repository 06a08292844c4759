package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cityhail/dispatch/pkg/models"
)

// ErrDuplicate is returned when a username or email is already taken.
var ErrDuplicate = errors.New("username or email already taken")

const uniqueViolation = "23505"

const userColumns = `
	id, username, email, hashed_password, is_driver, availability,
	vehicle, rating, latitude, longitude, created_at`

// Repository handles database access for user accounts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a users repository backed by the given pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a new user and fills in the generated id and
// created_at. Duplicate username/email maps to ErrDuplicate.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, hashed_password, is_driver, availability, vehicle)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		user.Username, user.Email, user.HashedPassword,
		user.IsDriver, user.Availability, user.Vehicle,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID fetches a user. Returns (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, userID)
}

// GetByUsername fetches a user by username. Returns (nil, nil) when absent.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.getOne(ctx, query, username)
}

// UpdateLocation moves the user's stored position. Returns (nil, nil) for an
// unknown user.
func (r *Repository) UpdateLocation(ctx context.Context, userID int64, lat, lng float64) (*models.User, error) {
	query := `
		UPDATE users
		SET latitude = $2, longitude = $3
		WHERE id = $1
		RETURNING ` + userColumns

	return r.getOne(ctx, query, userID, lat, lng)
}

// UpdateAvailability flips a driver's availability. Returns (nil, nil) when
// the user is missing or not a driver.
func (r *Repository) UpdateAvailability(ctx context.Context, userID int64, available bool) (*models.User, error) {
	query := `
		UPDATE users
		SET availability = $2
		WHERE id = $1 AND is_driver
		RETURNING ` + userColumns

	return r.getOne(ctx, query, userID, available)
}

func (r *Repository) getOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword,
		&user.IsDriver, &user.Availability, &user.Vehicle, &user.Rating,
		&user.Latitude, &user.Longitude, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}
