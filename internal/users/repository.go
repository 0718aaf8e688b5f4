package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrQuotaConsumed is returned by ConsumeGeneration when the conditional
// update matched no row: either the profile is gone or a concurrent request
// took the last slot in the window.
var ErrQuotaConsumed = errors.New("generation quota not available")

type Repository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ConsumeGeneration(ctx context.Context, id uuid.UUID, limit int, now time.Time) (int, error)
	ResetUsage(ctx context.Context, id uuid.UUID, now time.Time) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const profileColumns = `id, email, password_hash, generation_count, last_generation_reset, created_at, updated_at`

func (r *postgresRepository) Create(ctx context.Context, profile *Profile) error {
	query := `
		INSERT INTO profiles (id, email, password_hash, generation_count, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		profile.ID, profile.Email, profile.PasswordHash, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profile := &Profile{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID, &profile.Email, &profile.PasswordHash,
		&profile.GenerationCount, &profile.LastGenerationReset,
		&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile by id: %w", err)
	}
	return profile, nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`

	profile := &Profile{}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&profile.ID, &profile.Email, &profile.PasswordHash,
		&profile.GenerationCount, &profile.LastGenerationReset,
		&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying profile by email: %w", err)
	}
	return profile, nil
}

func (r *postgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

// ConsumeGeneration records one unit of quota usage in a single conditional
// UPDATE. The WHERE clause re-checks admission (count under limit, or the
// calendar month has rolled over) so two concurrent requests can never both
// take the last slot; the SET performs the increment-or-reset on the same
// row visit. Returns the post-consumption count.
func (r *postgresRepository) ConsumeGeneration(ctx context.Context, id uuid.UUID, limit int, now time.Time) (int, error) {
	query := `
		UPDATE profiles
		SET generation_count = CASE
		        WHEN last_generation_reset IS NULL
		          OR date_trunc('month', last_generation_reset AT TIME ZONE 'UTC')
		             <> date_trunc('month', $2::timestamptz AT TIME ZONE 'UTC')
		        THEN 1
		        ELSE generation_count + 1
		    END,
		    last_generation_reset = CASE
		        WHEN last_generation_reset IS NULL
		          OR date_trunc('month', last_generation_reset AT TIME ZONE 'UTC')
		             <> date_trunc('month', $2::timestamptz AT TIME ZONE 'UTC')
		        THEN $2
		        ELSE last_generation_reset
		    END,
		    updated_at = NOW()
		WHERE id = $1
		  AND (generation_count < $3
		       OR last_generation_reset IS NULL
		       OR date_trunc('month', last_generation_reset AT TIME ZONE 'UTC')
		          <> date_trunc('month', $2::timestamptz AT TIME ZONE 'UTC'))
		RETURNING generation_count`

	var newCount int
	err := r.pool.QueryRow(ctx, query, id, now.UTC(), limit).Scan(&newCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuotaConsumed
		}
		return 0, fmt.Errorf("consuming generation: %w", err)
	}
	return newCount, nil
}

// ResetUsage zeroes the usage counter and starts a fresh window, used when a
// payment is captured.
func (r *postgresRepository) ResetUsage(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET generation_count = 0,
		    last_generation_reset = $2,
		    updated_at = NOW()
		WHERE id = $1`, id, now.UTC())
	if err != nil {
		return fmt.Errorf("resetting usage: %w", err)
	}
	return nil
}
