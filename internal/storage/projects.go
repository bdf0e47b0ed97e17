package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

const (
	metaFile  = "metadata.json"
	stateFile = "state.json"
)

// ProjectFiles stores each project as a directory holding metadata.json and
// state.json.
type ProjectFiles struct {
	files *FileStore
	mu    sync.Mutex
}

var _ domain.ProjectRepository = (*ProjectFiles)(nil)

func NewProjectFiles(files *FileStore) *ProjectFiles {
	return &ProjectFiles{files: files}
}

// List returns the metadata of every project directory, ordered by id. A
// directory without readable metadata is listed with its id as title.
func (p *ProjectFiles) List(ctx context.Context) ([]domain.ProjectMeta, error) {
	dirs, err := p.files.ListDirs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProjectMeta, 0, len(dirs))
	for _, id := range dirs {
		meta, err := p.readMeta(ctx, id)
		if err != nil {
			meta = defaultMeta(id)
		}
		out = append(out, meta)
	}
	return out, nil
}

func (p *ProjectFiles) Create(ctx context.Context, meta domain.ProjectMeta, state domain.StateDocument) error {
	if err := validID(meta.ID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writeJSON(ctx, path.Join(meta.ID, metaFile), meta); err != nil {
		return err
	}
	return p.writeJSON(ctx, path.Join(meta.ID, stateFile), state)
}

// Get returns ErrNotFound when the project directory does not exist. Missing
// metadata or state files yield defaults.
func (p *ProjectFiles) Get(ctx context.Context, id string) (domain.ProjectMeta, domain.StateDocument, error) {
	if err := p.requireProject(ctx, id); err != nil {
		return domain.ProjectMeta{}, nil, err
	}
	meta, err := p.readMeta(ctx, id)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.ProjectMeta{}, nil, err
		}
		meta = defaultMeta(id)
	}
	state := domain.StateDocument{}
	data, err := p.files.Read(ctx, path.Join(id, stateFile))
	switch {
	case err == nil:
		// A corrupt state file is treated like a missing one.
		if jsonErr := json.Unmarshal(data, &state); jsonErr != nil || state == nil {
			state = domain.StateDocument{}
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return domain.ProjectMeta{}, nil, err
	}
	return meta, state, nil
}

func (p *ProjectFiles) SaveMeta(ctx context.Context, meta domain.ProjectMeta) error {
	if err := p.requireProject(ctx, meta.ID); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeJSON(ctx, path.Join(meta.ID, metaFile), meta)
}

func (p *ProjectFiles) SaveState(ctx context.Context, id string, state domain.StateDocument) error {
	if err := p.requireProject(ctx, id); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeJSON(ctx, path.Join(id, stateFile), state)
}

func (p *ProjectFiles) Delete(ctx context.Context, id string) error {
	if err := p.requireProject(ctx, id); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.files.Remove(ctx, id)
}

func (p *ProjectFiles) requireProject(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	ok, err := p.files.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (p *ProjectFiles) readMeta(ctx context.Context, id string) (domain.ProjectMeta, error) {
	data, err := p.files.Read(ctx, path.Join(id, metaFile))
	if err != nil {
		return domain.ProjectMeta{}, err
	}
	meta := defaultMeta(id)
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.ProjectMeta{}, fmt.Errorf("storage: decode metadata %s: %w", id, err)
	}
	return meta, nil
}

func (p *ProjectFiles) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	_, err = p.files.Write(ctx, key, data)
	return err
}

func defaultMeta(id string) domain.ProjectMeta {
	return domain.ProjectMeta{ID: id, Title: id, Status: "unknown", Mode: domain.ProjectModeStory}
}

// validID rejects ids that would address anything but a single directory.
func validID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return domain.ErrInvalidProject
	}
	return nil
}
