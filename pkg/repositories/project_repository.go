// Package repositories implements data access over the shared store handle.
// Repositories return apperrors sentinels for missing or conflicting rows and
// never embed business rules; those live in the agents.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/database"
	"github.com/mentorstack/mentor-engine/pkg/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerUsername string) ([]*models.Project, error)
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

var _ ProjectRepository = (*projectRepository)(nil)

// Create inserts a new project.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	decisions, collaborators, err := marshalProjectFields(project)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO mentor_projects (id, owner_username, name, status, progress, decisions, collaborators, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		project.ID,
		project.OwnerUsername,
		project.Name,
		project.Status,
		project.Progress,
		decisions,
		collaborators,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (r *projectRepository) Get(ctx context.Context, id string) (*models.Project, error) {
	query := `
		SELECT id, owner_username, name, status, progress, decisions, collaborators, created_at, updated_at
		FROM mentor_projects
		WHERE id = $1`

	return r.scanProject(r.db.QueryRow(ctx, query, id))
}

// Update persists the full mutable state of an existing project.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	decisions, collaborators, err := marshalProjectFields(project)
	if err != nil {
		return err
	}

	query := `
		UPDATE mentor_projects
		SET name = $2, status = $3, progress = $4, decisions = $5, collaborators = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		project.ID,
		project.Name,
		project.Status,
		project.Progress,
		decisions,
		collaborators,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a project. Owned knowledge entries cascade via foreign key.
func (r *projectRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM mentor_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListByOwner returns all projects owned by the given username, newest first.
func (r *projectRepository) ListByOwner(ctx context.Context, ownerUsername string) ([]*models.Project, error) {
	query := `
		SELECT id, owner_username, name, status, progress, decisions, collaborators, created_at, updated_at
		FROM mentor_projects
		WHERE owner_username = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := r.scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *projectRepository) scanProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	var decisions, collaborators []byte

	err := row.Scan(
		&project.ID,
		&project.OwnerUsername,
		&project.Name,
		&project.Status,
		&project.Progress,
		&decisions,
		&collaborators,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if err := json.Unmarshal(decisions, &project.Decisions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decisions: %w", err)
	}
	if err := json.Unmarshal(collaborators, &project.Collaborators); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collaborators: %w", err)
	}

	return &project, nil
}

func marshalProjectFields(project *models.Project) (decisions, collaborators []byte, err error) {
	if project.Decisions == nil {
		project.Decisions = []models.TechnologyDecision{}
	}
	if project.Collaborators == nil {
		project.Collaborators = map[string]string{}
	}

	decisions, err = json.Marshal(project.Decisions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal decisions: %w", err)
	}
	collaborators, err = json.Marshal(project.Collaborators)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal collaborators: %w", err)
	}
	return decisions, collaborators, nil
}
