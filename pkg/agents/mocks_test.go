package agents

import (
	"context"
	"sync"
	"time"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// In-memory repositories. Get hands out copies so a missed Update call
// cannot silently leak state into the store.

type mockProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*models.Project
}

var _ repositories.ProjectRepository = (*mockProjectRepo)(nil)

func newMockProjectRepo() *mockProjectRepo {
	return &mockProjectRepo{projects: make(map[string]*models.Project)}
}

func copyProject(p *models.Project) *models.Project {
	cp := *p
	cp.Decisions = append([]models.TechnologyDecision(nil), p.Decisions...)
	cp.Collaborators = make(map[string]string, len(p.Collaborators))
	for k, v := range p.Collaborators {
		cp.Collaborators[k] = v
	}
	return &cp
}

func (m *mockProjectRepo) Create(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.projects {
		if existing.OwnerUsername == project.OwnerUsername && existing.Name == project.Name {
			return apperrors.ErrConflict
		}
	}
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now
	m.projects[project.ID] = copyProject(project)
	return nil
}

func (m *mockProjectRepo) Get(_ context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyProject(p), nil
}

func (m *mockProjectRepo) Update(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[project.ID]; !ok {
		return apperrors.ErrNotFound
	}
	project.UpdatedAt = time.Now()
	m.projects[project.ID] = copyProject(project)
	return nil
}

func (m *mockProjectRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) ListByOwner(_ context.Context, owner string) ([]*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Project
	for _, p := range m.projects {
		if p.OwnerUsername == owner {
			out = append(out, copyProject(p))
		}
	}
	return out, nil
}

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

var _ repositories.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return apperrors.ErrConflict
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	m.users[user.Username] = &cp
	return nil
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; !ok {
		return apperrors.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	cp := *user
	m.users[user.Username] = &cp
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.users, username)
	return nil
}

type mockKnowledgeRepo struct {
	mu      sync.Mutex
	entries []*models.KnowledgeEntry
}

var _ repositories.KnowledgeRepository = (*mockKnowledgeRepo)(nil)

func newMockKnowledgeRepo() *mockKnowledgeRepo {
	return &mockKnowledgeRepo{}
}

func (m *mockKnowledgeRepo) Create(_ context.Context, entry *models.KnowledgeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.CreatedAt = time.Now()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *mockKnowledgeRepo) ListByProject(_ context.Context, projectID string) ([]*models.KnowledgeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.KnowledgeEntry
	for _, e := range m.entries {
		if e.ProjectID == projectID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockKnowledgeRepo) DeleteByProject(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.ProjectID != projectID {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

func (m *mockKnowledgeRepo) SearchSimilar(ctx context.Context, projectID string, embedding []float32, limit int) ([]*models.KnowledgeEntry, error) {
	entries, err := m.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return repositories.RankBySimilarity(entries, embedding, limit), nil
}

type mockUsageRepo struct {
	mu      sync.Mutex
	records []*models.TokenUsage
}

var _ repositories.UsageRepository = (*mockUsageRepo)(nil)

func (m *mockUsageRepo) Record(_ context.Context, usage *models.TokenUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *usage
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockUsageRepo) SummarizeByUser(_ context.Context, username string) ([]*models.UsageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCapability := make(map[string]*models.UsageSummary)
	var names []string
	for _, r := range m.records {
		if r.Username != username {
			continue
		}
		s, ok := byCapability[r.Capability]
		if !ok {
			s = &models.UsageSummary{Capability: r.Capability}
			byCapability[r.Capability] = s
			names = append(names, r.Capability)
		}
		s.Invocations++
		if !r.Succeeded {
			s.Failures++
		}
		s.PromptTokens += r.PromptTokens
		s.CompletionTokens += r.CompletionTokens
		s.CostUSD += r.CostUSD
	}
	out := make([]*models.UsageSummary, 0, len(names))
	for _, name := range names {
		out = append(out, byCapability[name])
	}
	return out, nil
}
