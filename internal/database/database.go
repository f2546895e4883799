package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/emilythestrangee/grievance-portal/backend/internal/config"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/models"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error
	GetDB() *gorm.DB
}

type service struct {
	db   *gorm.DB
	logg *logrus.Logger
}

// constraints are applied after AutoMigrate. gorm tags cannot express the
// vote target check or the per-target uniqueness, so they live here.
var constraints = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_user_votes_user_grievance ON user_votes (user_id, grievance_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_user_votes_user_comment ON user_votes (user_id, comment_id)`,
	`CREATE INDEX IF NOT EXISTS ix_user_votes_grievance ON user_votes (grievance_id) WHERE grievance_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS ix_user_votes_comment ON user_votes (comment_id) WHERE comment_id IS NOT NULL`,
	`DO $$ BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_user_votes_target') THEN
			ALTER TABLE user_votes ADD CONSTRAINT chk_user_votes_target
				CHECK (num_nonnulls(grievance_id, comment_id) = 1);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_user_votes_type') THEN
			ALTER TABLE user_votes ADD CONSTRAINT chk_user_votes_type
				CHECK (vote_type IN ('up', 'down'));
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_user_votes_grievance') THEN
			ALTER TABLE user_votes ADD CONSTRAINT fk_user_votes_grievance
				FOREIGN KEY (grievance_id) REFERENCES grievances (id) ON DELETE CASCADE;
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_user_votes_comment') THEN
			ALTER TABLE user_votes ADD CONSTRAINT fk_user_votes_comment
				FOREIGN KEY (comment_id) REFERENCES comments (id) ON DELETE CASCADE;
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_comments_grievance') THEN
			ALTER TABLE comments ADD CONSTRAINT fk_comments_grievance
				FOREIGN KEY (grievance_id) REFERENCES grievances (id) ON DELETE CASCADE;
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_user_votes_user') THEN
			ALTER TABLE user_votes ADD CONSTRAINT fk_user_votes_user
				FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE;
		END IF;
	END $$`,
}

// Open connects to Postgres and configures the pool. It does not migrate.
func Open(cfg *config.Config, logg *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Gorm(logg),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpen)
	sqlDB.SetConnMaxLifetime(cfg.DBMaxLife)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table and the vote constraints.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Department{},
		&models.User{},
		&models.Grievance{},
		&models.Comment{},
		&models.Vote{},
		&models.Assignment{},
	)
	if err != nil {
		return fmt.Errorf("error migrating tables: %w", err)
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("error applying constraint: %w", err)
		}
	}
	return nil
}

// New opens and migrates the database.
func New(cfg *config.Config, logg *logrus.Logger) (Service, error) {
	db, err := Open(cfg, logg)
	if err != nil {
		return nil, err
	}
	logg.Info("database connected")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	logg.Info("database migrations completed")

	return &service{db: db, logg: logg}, nil
}

// NewFromDB wraps an already opened connection.
func NewFromDB(db *gorm.DB, logg *logrus.Logger) Service {
	return &service{db: db, logg: logg}
}

func (s *service) GetDB() *gorm.DB {
	return s.db
}

// Health checks the health of the database connection by pinging the database.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := make(map[string]string)

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.logg.Info("disconnected from database")
	return sqlDB.Close()
}
