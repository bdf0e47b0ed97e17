package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/infra"
	"github.com/rreenactt/AI-Videos-Tool/internal/sqlinline"
)

// PGStore keeps projects in a single Postgres table with the state held as jsonb.
type PGStore struct {
	db infra.SQLExecutor
}

var _ domain.ProjectRepository = (*PGStore)(nil)

func NewPGStore(db infra.SQLExecutor) *PGStore {
	return &PGStore{db: db}
}

// EnsureSchema creates the projects table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, sqlinline.QEnsureProjectsTable); err != nil {
		return fmt.Errorf("storage: ensure projects table: %w", err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context) ([]domain.ProjectMeta, error) {
	rows, err := s.db.Query(ctx, sqlinline.QListProjects)
	if err != nil {
		return nil, fmt.Errorf("storage: list projects: %w", err)
	}
	defer rows.Close()

	var out []domain.ProjectMeta
	for rows.Next() {
		var (
			meta domain.ProjectMeta
			mode string
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.Status, &mode); err != nil {
			return nil, fmt.Errorf("storage: scan project: %w", err)
		}
		meta.Mode = domain.NormalizeProjectMode(mode)
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list projects: %w", err)
	}
	return out, nil
}

func (s *PGStore) Create(ctx context.Context, meta domain.ProjectMeta, state domain.StateDocument) error {
	if err := validID(meta.ID); err != nil {
		return err
	}
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, sqlinline.QInsertProject,
		meta.ID, meta.Title, meta.CreatedAt, meta.Status, string(meta.Mode), raw); err != nil {
		return fmt.Errorf("storage: insert project: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id string) (domain.ProjectMeta, domain.StateDocument, error) {
	var (
		meta domain.ProjectMeta
		mode string
		raw  []byte
	)
	err := s.db.QueryRow(ctx, sqlinline.QSelectProject, id).
		Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.Status, &mode, &raw)
	if infra.IsNoRows(err) {
		return domain.ProjectMeta{}, nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ProjectMeta{}, nil, fmt.Errorf("storage: select project: %w", err)
	}
	meta.Mode = domain.NormalizeProjectMode(mode)
	state := domain.StateDocument{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &state); err != nil || state == nil {
			state = domain.StateDocument{}
		}
	}
	return meta, state, nil
}

func (s *PGStore) SaveMeta(ctx context.Context, meta domain.ProjectMeta) error {
	tag, err := s.db.Exec(ctx, sqlinline.QUpdateProjectMeta, meta.ID, meta.Title, meta.Status, string(meta.Mode))
	if err != nil {
		return fmt.Errorf("storage: update project meta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", meta.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *PGStore) SaveState(ctx context.Context, id string, state domain.StateDocument) error {
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, sqlinline.QUpdateProjectState, id, raw)
	if err != nil {
		return fmt.Errorf("storage: update project state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, sqlinline.QDeleteProject, id)
	if err != nil {
		return fmt.Errorf("storage: delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func encodeState(state domain.StateDocument) (string, error) {
	if state == nil {
		state = domain.StateDocument{}
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("storage: encode state: %w", err)
	}
	return string(raw), nil
}
