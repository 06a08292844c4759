package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cityhail/dispatch/pkg/config"
	"github.com/cityhail/dispatch/pkg/database"
	"github.com/cityhail/dispatch/pkg/logger"
)

type seedUser struct {
	username  string
	email     string
	password  string
	isDriver  bool
	vehicle   string
	rating    float64
	latitude  float64
	longitude float64
}

// Demo accounts around central Bishkek.
var seedUsers = []seedUser{
	{username: "aidai", email: "aidai@example.com", password: "password123", latitude: 42.8746, longitude: 74.5698},
	{username: "bakyt", email: "bakyt@example.com", password: "password123", latitude: 42.8700, longitude: 74.5900},
	{username: "cholpon", email: "cholpon@example.com", password: "password123", latitude: 42.8800, longitude: 74.6100},
	{username: "daniyar", email: "daniyar@example.com", password: "password123", isDriver: true, vehicle: "Toyota Camry", rating: 4.8, latitude: 42.8760, longitude: 74.5710},
	{username: "erlan", email: "erlan@example.com", password: "password123", isDriver: true, vehicle: "Honda Fit", rating: 4.6, latitude: 42.8650, longitude: 74.6050},
}

func main() {
	cfg, err := config.Load("seed")
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, "seed"); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	ctx := context.Background()
	inserted := 0

	for _, u := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("Failed to hash password", zap.String("username", u.username), zap.Error(err))
		}

		var vehicle *string
		var rating *float64
		if u.isDriver {
			vehicle = &u.vehicle
			rating = &u.rating
		}

		tag, err := db.Exec(ctx, `
			INSERT INTO users (username, email, hashed_password, is_driver, availability,
			                   vehicle, rating, latitude, longitude)
			VALUES ($1, $2, $3, $4, $4, $5, $6, $7, $8)
			ON CONFLICT (username) DO NOTHING`,
			u.username, u.email, string(hash), u.isDriver,
			vehicle, rating, u.latitude, u.longitude,
		)
		if err != nil {
			logger.Fatal("Failed to seed user", zap.String("username", u.username), zap.Error(err))
		}
		inserted += int(tag.RowsAffected())
	}

	logger.Info("Seed complete",
		zap.Int("inserted", inserted),
		zap.Int("skipped", len(seedUsers)-inserted),
	)
}
