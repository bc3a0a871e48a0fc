package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// SQLiteDirectory is the default Directory, backed by a local SQLite file.
type SQLiteDirectory struct {
	conn *sql.DB
	cost int
}

// NewSQLiteDirectory opens (or creates) the database at path and initializes
// the schema.
func NewSQLiteDirectory(path string) (*SQLiteDirectory, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	d := &SQLiteDirectory{conn: conn, cost: bcrypt.DefaultCost}
	if err := d.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *SQLiteDirectory) Close() error {
	return d.conn.Close()
}

func (d *SQLiteDirectory) initSchema() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		assigned_at DATETIME NOT NULL
	);
	`
	_, err := d.conn.Exec(schema)
	return err
}

func (d *SQLiteDirectory) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	var hash string
	err := d.conn.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = ?`, normalizeEmail(email),
	).Scan(&u.ID, &u.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		rejectUnknown(password, d.cost)
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	if !checkPassword(hash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (d *SQLiteDirectory) CreateUser(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	hash, err := hashPassword(password, d.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{ID: uuid.NewString(), Email: email}
	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, hash, time.Now().UTC(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (d *SQLiteDirectory) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := d.conn.QueryRowContext(ctx,
		`SELECT id, email FROM users WHERE email = ?`, normalizeEmail(email),
	).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// AssignRole upserts the user's role row. Assigning RoleUser removes the row,
// which is how admin rights are revoked.
func (d *SQLiteDirectory) AssignRole(ctx context.Context, userID string, role Role) error {
	if role != RoleAdmin {
		if _, err := d.conn.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("revoke role: %w", err)
		}
		return nil
	}

	_, err := d.conn.ExecContext(ctx, `
	INSERT INTO user_roles (user_id, role, assigned_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		role = excluded.role,
		assigned_at = excluded.assigned_at
	`, userID, string(role), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (d *SQLiteDirectory) RoleOf(ctx context.Context, userID string) (Role, error) {
	var role string
	err := d.conn.QueryRowContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ?`, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleUser, nil
	}
	if err != nil {
		return "", fmt.Errorf("query role: %w", err)
	}
	return ParseRole(role), nil
}
