package ideas

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, idea *Idea) error
	GetByID(ctx context.Context, id uuid.UUID) (*Idea, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Idea, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	AttachPlan(ctx context.Context, id uuid.UUID, platform string, buildPlan []byte) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const ideaColumns = `id, owner_user_id, title, idea_text, analysis, platform, build_plan, created_at, updated_at, deleted_at`

func (r *postgresRepository) Create(ctx context.Context, idea *Idea) error {
	query := `
		INSERT INTO ideas (id, owner_user_id, title, idea_text, analysis, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		idea.ID, idea.OwnerUserID, idea.Title, idea.IdeaText, []byte(idea.Analysis),
		idea.CreatedAt, idea.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting idea: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Idea, error) {
	query := `SELECT ` + ideaColumns + ` FROM ideas WHERE id = $1 AND deleted_at IS NULL`

	idea := &Idea{}
	var platform *string
	var buildPlan []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&idea.ID, &idea.OwnerUserID, &idea.Title, &idea.IdeaText, &idea.Analysis,
		&platform, &buildPlan, &idea.CreatedAt, &idea.UpdatedAt, &idea.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying idea by id: %w", err)
	}
	if platform != nil {
		idea.Platform = *platform
	}
	idea.BuildPlan = buildPlan
	return idea, nil
}

func (r *postgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Idea, error) {
	query := `
		SELECT ` + ideaColumns + `
		FROM ideas
		WHERE owner_user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing ideas: %w", err)
	}
	defer rows.Close()

	var result []*Idea
	for rows.Next() {
		idea := &Idea{}
		var platform *string
		var buildPlan []byte
		err := rows.Scan(
			&idea.ID, &idea.OwnerUserID, &idea.Title, &idea.IdeaText, &idea.Analysis,
			&platform, &buildPlan, &idea.CreatedAt, &idea.UpdatedAt, &idea.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning idea row: %w", err)
		}
		if platform != nil {
			idea.Platform = *platform
		}
		idea.BuildPlan = buildPlan
		result = append(result, idea)
	}
	return result, rows.Err()
}

func (r *postgresRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ideas WHERE owner_user_id = $1 AND deleted_at IS NULL`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting ideas: %w", err)
	}
	return count, nil
}

func (r *postgresRepository) AttachPlan(ctx context.Context, id uuid.UUID, platform string, buildPlan []byte) error {
	query := `
		UPDATE ideas
		SET platform = $2, build_plan = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id, platform, buildPlan)
	if err != nil {
		return fmt.Errorf("attaching build plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idea not found or already deleted")
	}
	return nil
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ideas SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("deleting idea: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idea not found or already deleted")
	}
	return nil
}
