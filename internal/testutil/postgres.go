// Package testutil starts throwaway Postgres instances for store tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/config"
	"github.com/emilythestrangee/grievance-portal/backend/internal/database"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

// Postgres is a migrated database running in a container.
type Postgres struct {
	DB        *gorm.DB
	container *postgres.PostgresContainer
}

// StartPostgres launches a container and migrates the schema. Callers should
// treat an error as "no Docker available" and skip database tests.
func StartPostgres(ctx context.Context) (pg *Postgres, err error) {
	// testcontainers panics instead of erroring when no Docker host can be found
	defer func() {
		if r := recover(); r != nil {
			pg, err = nil, fmt.Errorf("start postgres container: %v", r)
		}
	}()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("grievances"),
		postgres.WithUsername("civic"),
		postgres.WithPassword("civic"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		if ctr != nil {
			_ = ctr.Terminate(ctx)
		}
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	cfg := &config.Config{
		DatabaseURL: dsn,
		DBMaxIdle:   5,
		DBMaxOpen:   20,
		DBMaxLife:   time.Hour,
	}
	db, err := database.Open(cfg, logger.New("warn", io.Discard))
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = ctr.Terminate(ctx)
		return nil, err
	}
	return &Postgres{DB: db, container: ctr}, nil
}

// Terminate closes the connection and removes the container.
func (p *Postgres) Terminate(ctx context.Context) error {
	if sqlDB, err := p.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return testcontainers.TerminateContainer(p.container)
}

// Reset truncates every table so tests start from an empty schema.
func (p *Postgres) Reset(t *testing.T) *gorm.DB {
	t.Helper()
	err := p.DB.Exec(`TRUNCATE user_votes, assignments, comments, grievances, users, departments RESTART IDENTITY CASCADE`).Error
	if err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
	return p.DB
}

// CreateUser inserts a user with a throwaway password hash.
func CreateUser(t *testing.T, db *gorm.DB, username, municipality string, role models.Role) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		Password:     "x",
		Municipality: municipality,
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

// CreateGrievance inserts a grievance with the given counters and creation time.
func CreateGrievance(t *testing.T, db *gorm.DB, g models.Grievance) models.Grievance {
	t.Helper()
	if g.Title == "" {
		g.Title = "Broken streetlight"
	}
	if g.Description == "" {
		g.Description = "The light has been out for a week"
	}
	if g.Category == "" {
		g.Category = "electricity"
	}
	if g.Municipality == "" {
		g.Municipality = "springfield"
	}
	if g.Status == "" {
		g.Status = models.StatusPending
	}
	if err := db.Create(&g).Error; err != nil {
		t.Fatalf("failed to create grievance: %v", err)
	}
	return g
}

// CreateComment inserts a comment on a grievance.
func CreateComment(t *testing.T, db *gorm.DB, grievanceID, authorID int, body string) models.Comment {
	t.Helper()
	c := models.Comment{Body: body, GrievanceID: grievanceID, AuthorID: authorID}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("failed to create comment: %v", err)
	}
	return c
}
