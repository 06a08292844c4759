package models

import "time"

// User represents an account in the system. Riders and drivers share one
// table; driver-only fields are meaningful when IsDriver is set.
type User struct {
	ID             int64     `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Email          string    `json:"email" db:"email"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	IsDriver       bool      `json:"is_driver" db:"is_driver"`
	Availability   bool      `json:"availability" db:"availability"`
	Vehicle        *string   `json:"vehicle,omitempty" db:"vehicle"`
	Rating         *float64  `json:"rating,omitempty" db:"rating"`
	Latitude       *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude      *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// HasLocation reports whether the user has a stored position. Drivers
// without one are never eligible for matching.
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// UserSummary is the public projection embedded in ride responses and
// push payloads.
type UserSummary struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Vehicle  *string  `json:"vehicle,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
}

// Summary returns the public projection of the user.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Vehicle:  u.Vehicle,
		Rating:   u.Rating,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=64"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	IsDriver bool    `json:"is_driver"`
	Vehicle  *string `json:"vehicle,omitempty"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateLocationRequest updates a user's last known position.
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" binding:"required,longitude"`
}

// UpdateAvailabilityRequest toggles a driver's willingness to receive
// offers. Pointer so that an explicit false still binds.
type UpdateAvailabilityRequest struct {
	Availability *bool `json:"availability" binding:"required"`
}
