package rides

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cityhail/dispatch/pkg/models"
)

const rideColumns = `
	id, rider_id, driver_id, status, start_location, end_location,
	start_lat, start_lng, end_lat, end_lng,
	offered_to_driver_id, offered_at, expires_at, offer_attempts,
	declined_driver_ids, cancellation_reason, fare,
	created_at, updated_at, completed_at, cancelled_at`

// RideMutation describes the row changes a lifecycle transition applies.
// Zero-value fields are left untouched.
type RideMutation struct {
	Status       models.RideStatus
	Fare         *float64
	SetCompleted bool
	SetCancelled bool

	// ClearOffer nulls offered_to_driver_id, offered_at and expires_at.
	// Set on every transition out of offering.
	ClearOffer bool

	// FreeDriverID restores this driver's availability in the same
	// transaction (cancel-from-accepted and complete).
	FreeDriverID *int64
}

// Repository handles database access for ride intake, reads and lifecycle
// transitions.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a rides repository backed by the given pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetUser fetches a user row. Returns (nil, nil) when absent.
func (r *Repository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	query := `
		SELECT id, username, email, hashed_password, is_driver, availability,
		       vehicle, rating, latitude, longitude, created_at
		FROM users
		WHERE id = $1`

	var user models.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword,
		&user.IsDriver, &user.Availability, &user.Vehicle, &user.Rating,
		&user.Latitude, &user.Longitude, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return &user, nil
}

// CountActiveRides counts the rider's rides in a non-terminal status.
func (r *Repository) CountActiveRides(ctx context.Context, riderID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM rides
		WHERE rider_id = $1
		  AND status IN ('requested', 'offering', 'accepted', 'in_progress')`

	var count int
	if err := r.db.QueryRow(ctx, query, riderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active rides: %w", err)
	}
	return count, nil
}

// CreateRide inserts a new requested ride and moves the rider's stored
// location to the pickup point in one transaction.
func (r *Repository) CreateRide(ctx context.Context, req *models.CreateRideRequest) (*models.Ride, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE users SET latitude = $2, longitude = $3 WHERE id = $1`,
		req.UserID, req.PickupLat, req.PickupLng,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update rider location: %w", err)
	}

	query := `
		INSERT INTO rides (
			rider_id, status, start_location, end_location,
			start_lat, start_lng, end_lat, end_lng
		)
		VALUES ($1, 'requested', $2, $3, $4, $5, $6, $7)
		RETURNING ` + rideColumns

	ride, err := scanRide(tx.QueryRow(ctx, query,
		req.UserID, req.SourceLocation, req.DestLocation,
		req.PickupLat, req.PickupLng, req.DestLat, req.DestLng,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ride, nil
}

// GetRideWithUsers fetches a ride with embedded rider and driver summaries.
// Returns (nil, nil) when the ride does not exist.
func (r *Repository) GetRideWithUsers(ctx context.Context, rideID int64) (*models.RideResponse, error) {
	query := `
		SELECT ` + prefixedRideColumns("r") + `,
		       ru.id, ru.username, ru.vehicle, ru.rating,
		       du.id, du.username, du.vehicle, du.rating
		FROM rides r
		JOIN users ru ON ru.id = r.rider_id
		LEFT JOIN users du ON du.id = r.driver_id
		WHERE r.id = $1`

	var (
		ride  models.Ride
		rider models.UserSummary

		status string

		driverID       *int64
		driverUsername *string
		driverVehicle  *string
		driverRating   *float64
	)
	err := r.db.QueryRow(ctx, query, rideID).Scan(
		&ride.ID, &ride.RiderID, &ride.DriverID, &status,
		&ride.StartLocation, &ride.EndLocation,
		&ride.StartLat, &ride.StartLng, &ride.EndLat, &ride.EndLng,
		&ride.OfferedToDriverID, &ride.OfferedAt, &ride.ExpiresAt, &ride.OfferAttempts,
		&ride.DeclinedDriverIDs, &ride.CancellationReason, &ride.Fare,
		&ride.CreatedAt, &ride.UpdatedAt, &ride.CompletedAt, &ride.CancelledAt,
		&rider.ID, &rider.Username, &rider.Vehicle, &rider.Rating,
		&driverID, &driverUsername, &driverVehicle, &driverRating,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get ride %d: %w", rideID, err)
	}
	ride.Status = models.RideStatus(status)

	resp := &models.RideResponse{Ride: &ride, Rider: &rider}
	if driverID != nil {
		resp.Driver = &models.UserSummary{
			ID:      *driverID,
			Vehicle: driverVehicle,
			Rating:  driverRating,
		}
		if driverUsername != nil {
			resp.Driver.Username = *driverUsername
		}
	}
	return resp, nil
}

// ListRides returns rides matching the filter, newest first, plus the total
// matching count for pagination.
func (r *Repository) ListRides(ctx context.Context, filter models.RideFilter, limit, offset int) ([]*models.Ride, int64, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argn := 1

	if filter.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argn)
		args = append(args, string(*filter.Status))
		argn++
	}
	if filter.RiderID > 0 {
		where += fmt.Sprintf(" AND rider_id = $%d", argn)
		args = append(args, filter.RiderID)
		argn++
	}
	if filter.DriverID > 0 {
		where += fmt.Sprintf(" AND driver_id = $%d", argn)
		args = append(args, filter.DriverID)
		argn++
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM rides` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	query := `SELECT ` + rideColumns + ` FROM rides` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argn, argn+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	rides := make([]*models.Ride, 0)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	return rides, total, rows.Err()
}

// TransitionRide locks the ride, lets apply decide the transition, and
// executes the resulting mutation. apply receives nil when the ride does not
// exist; its error aborts the transaction unchanged and is returned as-is.
func (r *Repository) TransitionRide(ctx context.Context, rideID int64, apply func(ride *models.Ride) (*RideMutation, error)) (*models.Ride, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`
	ride, err := scanRide(tx.QueryRow(ctx, query, rideID))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock ride %d: %w", rideID, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		ride = nil
	}

	m, err := apply(ride)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return ride, nil
	}

	update := `
		UPDATE rides
		SET status = $2,
		    fare = COALESCE($3, fare),
		    completed_at = CASE WHEN $4 THEN now() ELSE completed_at END,
		    cancelled_at = CASE WHEN $5 THEN now() ELSE cancelled_at END,
		    offered_to_driver_id = CASE WHEN $6 THEN NULL ELSE offered_to_driver_id END,
		    offered_at = CASE WHEN $6 THEN NULL ELSE offered_at END,
		    expires_at = CASE WHEN $6 THEN NULL ELSE expires_at END,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + rideColumns

	updated, err := scanRide(tx.QueryRow(ctx, update,
		ride.ID, string(m.Status), m.Fare, m.SetCompleted, m.SetCancelled, m.ClearOffer,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to update ride %d: %w", ride.ID, err)
	}

	if m.FreeDriverID != nil {
		_, err = tx.Exec(ctx,
			`UPDATE users SET availability = TRUE WHERE id = $1 AND is_driver`,
			*m.FreeDriverID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to restore driver %d availability: %w", *m.FreeDriverID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

func prefixedRideColumns(alias string) string {
	return alias + `.id, ` + alias + `.rider_id, ` + alias + `.driver_id, ` + alias + `.status,
		` + alias + `.start_location, ` + alias + `.end_location,
		` + alias + `.start_lat, ` + alias + `.start_lng, ` + alias + `.end_lat, ` + alias + `.end_lng,
		` + alias + `.offered_to_driver_id, ` + alias + `.offered_at, ` + alias + `.expires_at, ` + alias + `.offer_attempts,
		` + alias + `.declined_driver_ids, ` + alias + `.cancellation_reason, ` + alias + `.fare,
		` + alias + `.created_at, ` + alias + `.updated_at, ` + alias + `.completed_at, ` + alias + `.cancelled_at`
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var (
		ride   models.Ride
		status string
	)
	err := row.Scan(
		&ride.ID, &ride.RiderID, &ride.DriverID, &status,
		&ride.StartLocation, &ride.EndLocation,
		&ride.StartLat, &ride.StartLng, &ride.EndLat, &ride.EndLng,
		&ride.OfferedToDriverID, &ride.OfferedAt, &ride.ExpiresAt, &ride.OfferAttempts,
		&ride.DeclinedDriverIDs, &ride.CancellationReason, &ride.Fare,
		&ride.CreatedAt, &ride.UpdatedAt, &ride.CompletedAt, &ride.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	ride.Status = models.RideStatus(status)
	return &ride, nil
}

