package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// PGStore implements Store over a pgx connection pool.
type PGStore struct {
	db *pgxpool.Pool
}

// NewStore creates a PGStore backed by the given pool.
func NewStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// WithTx runs fn inside a transaction. fn's error is returned as-is so that
// AppError values survive to the handler layer.
func (s *PGStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExpiredOfferingRideIDs returns rides whose offer window has closed. The
// scan takes no locks; each id is re-verified under its own transaction.
func (s *PGStore) ExpiredOfferingRideIDs(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM rides WHERE status = 'offering' AND expires_at <= $1 ORDER BY expires_at ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired offers: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// StaleRequestedRideIDs returns requested rides created before the cutoff.
func (s *PGStore) StaleRequestedRideIDs(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM rides WHERE status = 'requested' AND created_at < $1 ORDER BY created_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan stale requests: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan ride id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) OldestUnofferedRide(ctx context.Context) (*models.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE status = 'requested' AND offered_to_driver_id IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	ride, err := scanRide(t.tx.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock oldest requested ride: %w", err)
	}
	return ride, nil
}

func (t *pgTx) RideForUpdate(ctx context.Context, rideID int64) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`

	ride, err := scanRide(t.tx.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock ride %d: %w", rideID, err)
	}
	return ride, nil
}

// eligibleDriverPredicate keeps EligibleDrivers and CountEligibleDrivers on
// the same definition of eligibility.
const eligibleDriverPredicate = `
	u.is_driver
	AND u.availability
	AND u.latitude IS NOT NULL AND u.longitude IS NOT NULL
	AND NOT (u.id = ANY($1))
	AND NOT EXISTS (
		SELECT 1 FROM rides r
		WHERE r.status = 'offering'
		  AND r.offered_to_driver_id = u.id
		  AND r.expires_at > now()
	)`

func (t *pgTx) EligibleDrivers(ctx context.Context, exclude []int64) ([]Candidate, error) {
	if exclude == nil {
		exclude = []int64{}
	}

	query := `
		SELECT u.id, u.latitude, u.longitude
		FROM users u
		WHERE ` + eligibleDriverPredicate + `
		ORDER BY u.id ASC`

	rows, err := t.tx.Query(ctx, query, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible drivers: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Latitude, &c.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan driver candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (t *pgTx) CountEligibleDrivers(ctx context.Context, exclude []int64) (int, error) {
	if exclude == nil {
		exclude = []int64{}
	}

	query := `SELECT COUNT(*) FROM users u WHERE ` + eligibleDriverPredicate

	var count int
	if err := t.tx.QueryRow(ctx, query, exclude).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count eligible drivers: %w", err)
	}
	return count, nil
}

func (t *pgTx) DriverForUpdate(ctx context.Context, driverID int64) (*models.User, error) {
	query := `
		SELECT id, username, email, hashed_password, is_driver, availability,
		       vehicle, rating, latitude, longitude, created_at
		FROM users
		WHERE id = $1
		FOR UPDATE`

	var user models.User
	err := t.tx.QueryRow(ctx, query, driverID).Scan(
		&user.ID, &user.Username, &user.Email, &user.HashedPassword,
		&user.IsDriver, &user.Availability, &user.Vehicle, &user.Rating,
		&user.Latitude, &user.Longitude, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock driver %d: %w", driverID, err)
	}
	return &user, nil
}

func (t *pgTx) MarkOffering(ctx context.Context, rideID, driverID int64, offeredAt, expiresAt time.Time) error {
	query := `
		UPDATE rides
		SET status = 'offering',
		    offered_to_driver_id = $2,
		    offered_at = $3,
		    expires_at = $4,
		    offer_attempts = offer_attempts + 1,
		    updated_at = now()
		WHERE id = $1`

	if _, err := t.tx.Exec(ctx, query, rideID, driverID, offeredAt, expiresAt); err != nil {
		return fmt.Errorf("failed to mark ride %d offering: %w", rideID, err)
	}
	return nil
}

func (t *pgTx) RevertToRequested(ctx context.Context, rideID, declinedDriverID int64) error {
	query := `
		UPDATE rides
		SET status = 'requested',
		    offered_to_driver_id = NULL,
		    offered_at = NULL,
		    expires_at = NULL,
		    declined_driver_ids = CASE
		        WHEN $2 = ANY(declined_driver_ids) THEN declined_driver_ids
		        ELSE array_append(declined_driver_ids, $2)
		    END,
		    updated_at = now()
		WHERE id = $1`

	if _, err := t.tx.Exec(ctx, query, rideID, declinedDriverID); err != nil {
		return fmt.Errorf("failed to revert ride %d to requested: %w", rideID, err)
	}
	return nil
}

func (t *pgTx) AssignDriver(ctx context.Context, rideID, driverID int64) error {
	query := `
		UPDATE rides
		SET status = 'accepted',
		    driver_id = $2,
		    offered_to_driver_id = NULL,
		    offered_at = NULL,
		    expires_at = NULL,
		    updated_at = now()
		WHERE id = $1`

	if _, err := t.tx.Exec(ctx, query, rideID, driverID); err != nil {
		return fmt.Errorf("failed to assign driver %d to ride %d: %w", driverID, rideID, err)
	}
	return nil
}

func (t *pgTx) SetDriverAvailability(ctx context.Context, driverID int64, available bool) error {
	query := `UPDATE users SET availability = $2 WHERE id = $1 AND is_driver`

	if _, err := t.tx.Exec(ctx, query, driverID, available); err != nil {
		return fmt.Errorf("failed to set driver %d availability: %w", driverID, err)
	}
	return nil
}

func (t *pgTx) CancelRide(ctx context.Context, rideID int64, reason string) error {
	query := `
		UPDATE rides
		SET status = 'cancelled',
		    cancelled_at = now(),
		    cancellation_reason = NULLIF($2, ''),
		    updated_at = now()
		WHERE id = $1`

	if _, err := t.tx.Exec(ctx, query, rideID, reason); err != nil {
		return fmt.Errorf("failed to cancel ride %d: %w", rideID, err)
	}
	return nil
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

var _ Store = (*PGStore)(nil)
var _ Tx = (*pgTx)(nil)
