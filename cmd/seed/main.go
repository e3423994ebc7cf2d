package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/logger"
)

type seedUser struct {
	name  string
	email string
	role  models.UserRole
}

var defaultUsers = []seedUser{
	{name: "Platform Admin", email: "admin@lms.local", role: models.RoleAdmin},
	{name: "Demo Teacher", email: "teacher@lms.local", role: models.RoleTeacher},
	{name: "Demo Student", email: "student@lms.local", role: models.RoleStudent},
}

func main() {
	password := flag.String("password", "ChangeMe123!", "password assigned to every seeded account")
	adminOnly := flag.Bool("admin-only", false, "seed only the admin account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(context.Background(), cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if cfg.RunMigrations {
		if err := database.Migrate(db); err != nil {
			logr.Sugar().Fatalw("migrations failed", "error", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		logr.Sugar().Fatalw("failed to hash password", "error", err)
	}

	users := defaultUsers
	if *adminOnly {
		users = users[:1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := repository.NewUserRepository(db)
	for _, u := range users {
		created, err := ensureUser(ctx, repo, u, string(hash))
		if err != nil {
			logr.Fatal("seeding user failed", zap.String("email", u.email), zap.Error(err))
		}
		if created {
			logr.Info("seeded user", zap.String("email", u.email), zap.String("role", string(u.role)))
		} else {
			logr.Info("user already present", zap.String("email", u.email))
		}
	}
}

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

func ensureUser(ctx context.Context, repo userStore, u seedUser, passwordHash string) (bool, error) {
	email := strings.ToLower(u.email)
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	err := repo.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Name:         u.name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         u.role,
	})
	if database.IsUniqueViolation(err) {
		return false, nil
	}
	return err == nil, err
}
