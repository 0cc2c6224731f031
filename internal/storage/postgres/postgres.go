package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credentials_service/internal/config"
	"credentials_service/internal/models"
	"credentials_service/internal/storage"
	"credentials_service/internal/storage/postgres/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

const userColumns = `id::text, name, email, google_id, is_email_verified, reset_token_hash, reset_token_expiry, created_at, updated_at`

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	return Connect(ctx, dsn(cfg))
}

func Connect(ctx context.Context, dsn string) (*PostgresRepo, error) {
	const op = "storage.postgres.Connect"

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// Migrate applies the embedded goose migrations.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.postgres.CreateUser"

	query := `
		INSERT INTO users (id, name, email, password_hash, google_id, is_email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns + `;
	`

	id := uuid.New()

	row := r.pool.QueryRow(ctx, query,
		id,
		u.Name,
		models.NormalizeEmail(u.Email),
		nullableBytes(u.PassHash),
		nullableString(u.GoogleID),
		u.IsEmailVerified,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrUserExists
		}

		return models.User{}, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return created, nil
}

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1;
	`

	return r.one(ctx, "storage.postgres.User", query, models.NormalizeEmail(email))
}

// UserWithPassword is the only read that loads the password hash.
func (r *PostgresRepo) UserWithPassword(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.UserWithPassword"

	query := `
		SELECT ` + userColumns + `, password_hash
		FROM users
		WHERE email = $1;
	`

	row := r.pool.QueryRow(ctx, query, models.NormalizeEmail(email))

	var passHash *string
	u, err := scanUser(row, &passHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if passHash != nil {
		u.PassHash = []byte(*passHash)
	}

	return u, nil
}

func (r *PostgresRepo) UserByID(ctx context.Context, id string) (models.User, error) {
	uid, err := parseID(id)
	if err != nil {
		return models.User{}, err
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1;
	`

	return r.one(ctx, "storage.postgres.UserByID", query, uid)
}

func (r *PostgresRepo) UserByGoogleID(ctx context.Context, googleID string) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE google_id = $1;
	`

	return r.one(ctx, "storage.postgres.UserByGoogleID", query, googleID)
}

// UserByEmailOrGoogleID prefers a google id match over an email match.
func (r *PostgresRepo) UserByEmailOrGoogleID(ctx context.Context, googleID, email string) (models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE google_id = $1 OR email = $2
		ORDER BY (google_id IS NOT DISTINCT FROM $1) DESC
		LIMIT 1;
	`

	return r.one(ctx, "storage.postgres.UserByEmailOrGoogleID", query, googleID, models.NormalizeEmail(email))
}

func (r *PostgresRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const op = "storage.postgres.SetResetToken"

	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expiry = $3, updated_at = NOW()
		WHERE id = $1;
	`

	uid, err := parseID(id)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, query, uid, tokenHash, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// ConsumeResetToken swaps the password and clears the token in a single
// conditional update, so two concurrent consumers cannot both match.
func (r *PostgresRepo) ConsumeResetToken(ctx context.Context, tokenHash string, passHash []byte, now time.Time) (models.User, error) {
	const op = "storage.postgres.ConsumeResetToken"

	query := `
		UPDATE users
		SET password_hash = $1,
		    reset_token_hash = NULL,
		    reset_token_expiry = NULL,
		    updated_at = NOW()
		WHERE reset_token_hash = $2 AND reset_token_expiry > $3
		RETURNING ` + userColumns + `;
	`

	u, err := scanUser(r.pool.QueryRow(ctx, query, string(passHash), tokenHash, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrResetTokenNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) LinkGoogleID(ctx context.Context, id, googleID string) error {
	const op = "storage.postgres.LinkGoogleID"

	query := `UPDATE users SET google_id = $2, updated_at = NOW() WHERE id = $1`

	uid, err := parseID(id)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, query, uid, googleID)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SetEmailVerified(ctx context.Context, userID string) error {
	const op = "storage.postgres.SetEmailVerified"

	query := `UPDATE users SET is_email_verified = TRUE, updated_at = NOW() WHERE id = $1`

	uid, err := parseID(userID)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) one(ctx context.Context, op, query string, args ...any) (models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// scanUser reads userColumns followed by any extra destinations.
func scanUser(row pgx.Row, extra ...any) (models.User, error) {
	var (
		u          models.User
		googleID   *string
		resetHash  *string
		resetUntil *time.Time
	)

	dest := []any{
		&u.ID,
		&u.Name,
		&u.Email,
		&googleID,
		&u.IsEmailVerified,
		&resetHash,
		&resetUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		return models.User{}, err
	}

	if googleID != nil {
		u.GoogleID = *googleID
	}
	if resetHash != nil {
		u.ResetTokenHash = *resetHash
	}
	u.ResetTokenExpiry = resetUntil

	return u, nil
}

// parseID maps malformed ids to not-found; they cannot exist in the table.
func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.UUID{}, storage.ErrUserNotFound
	}

	return uid, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableBytes(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}

// * dsn builds the connection string from config.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
