package domain

import "context"

// StateDocument holds a project's state as the opaque JSON object the backend stores.
type StateDocument map[string]any

// ProjectRepository defines persistence for project metadata and state documents.
type ProjectRepository interface {
	List(ctx context.Context) ([]ProjectMeta, error)
	Create(ctx context.Context, meta ProjectMeta, state StateDocument) error
	Get(ctx context.Context, id string) (ProjectMeta, StateDocument, error)
	SaveMeta(ctx context.Context, meta ProjectMeta) error
	SaveState(ctx context.Context, id string, state StateDocument) error
	Delete(ctx context.Context, id string) error
}
