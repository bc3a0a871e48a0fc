package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type userRecord struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

type roleRecord struct {
	UserID     string `gorm:"primaryKey;type:uuid"`
	Role       string `gorm:"not null"`
	AssignedAt time.Time
}

func (roleRecord) TableName() string { return "user_roles" }

// PostgresDirectory is a Directory on PostgreSQL through gorm.
type PostgresDirectory struct {
	db   *gorm.DB
	cost int
}

// NewPostgresDirectory connects to databaseURL and migrates the users and
// user_roles tables.
func NewPostgresDirectory(databaseURL string) (*PostgresDirectory, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := db.AutoMigrate(&userRecord{}, &roleRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresDirectory{db: db, cost: bcrypt.DefaultCost}, nil
}

// Close closes the underlying connection pool.
func (d *PostgresDirectory) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *PostgresDirectory) Authenticate(ctx context.Context, email, password string) (User, error) {
	var rec userRecord
	err := d.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rejectUnknown(password, d.cost)
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	if !checkPassword(rec.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return User{ID: rec.ID, Email: rec.Email}, nil
}

func (d *PostgresDirectory) CreateUser(ctx context.Context, email, password string) (User, error) {
	hash, err := hashPassword(password, d.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	rec := userRecord{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return User{ID: rec.ID, Email: rec.Email}, nil
}

func (d *PostgresDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	var rec userRecord
	err := d.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return User{ID: rec.ID, Email: rec.Email}, nil
}

func (d *PostgresDirectory) AssignRole(ctx context.Context, userID string, role Role) error {
	db := d.db.WithContext(ctx)
	if role != RoleAdmin {
		if err := db.Where("user_id = ?", userID).Delete(&roleRecord{}).Error; err != nil {
			return fmt.Errorf("revoke role: %w", err)
		}
		return nil
	}

	rec := roleRecord{UserID: userID, Role: string(role), AssignedAt: time.Now().UTC()}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "assigned_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (d *PostgresDirectory) RoleOf(ctx context.Context, userID string) (Role, error) {
	var rec roleRecord
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RoleUser, nil
	}
	if err != nil {
		return "", fmt.Errorf("query role: %w", err)
	}
	return ParseRole(rec.Role), nil
}
