package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/agents"
	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/auth"
	"github.com/mentorstack/mentor-engine/pkg/config"
	"github.com/mentorstack/mentor-engine/pkg/crypto"
	"github.com/mentorstack/mentor-engine/pkg/llm"
	"github.com/mentorstack/mentor-engine/pkg/locks"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

var _ repositories.UserRepository = (*memUserRepo)(nil)

func (m *memUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return apperrors.ErrConflict
	}
	cp := *user
	m.users[user.Username] = &cp
	return nil
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.Username] = &cp
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, username)
	return nil
}

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*models.Project
}

var _ repositories.ProjectRepository = (*memProjectRepo)(nil)

func copyProject(p *models.Project) *models.Project {
	cp := *p
	cp.Decisions = append([]models.TechnologyDecision(nil), p.Decisions...)
	cp.Collaborators = make(map[string]string, len(p.Collaborators))
	for k, v := range p.Collaborators {
		cp.Collaborators[k] = v
	}
	return &cp
}

func (m *memProjectRepo) Create(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if p.OwnerUsername == project.OwnerUsername && p.Name == project.Name {
			return apperrors.ErrConflict
		}
	}
	m.projects[project.ID] = copyProject(project)
	return nil
}

func (m *memProjectRepo) Get(_ context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyProject(p), nil
}

func (m *memProjectRepo) Update(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = copyProject(project)
	return nil
}

func (m *memProjectRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *memProjectRepo) ListByOwner(_ context.Context, owner string) ([]*models.Project, error) {
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

type memKnowledgeRepo struct {
	mu      sync.Mutex
	entries []*models.KnowledgeEntry
}

var _ repositories.KnowledgeRepository = (*memKnowledgeRepo)(nil)

func (m *memKnowledgeRepo) Create(_ context.Context, entry *models.KnowledgeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memKnowledgeRepo) ListByProject(_ context.Context, projectID string) ([]*models.KnowledgeEntry, error) {
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

func (m *memKnowledgeRepo) DeleteByProject(_ context.Context, projectID string) error {
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

func (m *memKnowledgeRepo) SearchSimilar(ctx context.Context, projectID string, embedding []float32, limit int) ([]*models.KnowledgeEntry, error) {
	entries, err := m.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return repositories.RankBySimilarity(entries, embedding, limit), nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

var _ repositories.RefreshTokenRepository = (*memTokenRepo)(nil)

func (m *memTokenRepo) Create(_ context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *token
	m.tokens[token.Digest] = &cp
	return nil
}

func (m *memTokenRepo) GetByDigest(_ context.Context, digest string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[digest]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (m *memTokenRepo) MarkRevoked(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.tokens {
		if tok.ID == id && tok.RevokedAt == nil {
			revokedAt := at
			tok.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *memTokenRepo) RevokeAllForUser(_ context.Context, username string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.tokens {
		if tok.Username == username && tok.RevokedAt == nil {
			revokedAt := at
			tok.RevokedAt = &revokedAt
		}
	}
	return nil
}

type memUsageRepo struct {
	mu      sync.Mutex
	records []*models.TokenUsage
}

var _ repositories.UsageRepository = (*memUsageRepo)(nil)

func (m *memUsageRepo) Record(_ context.Context, usage *models.TokenUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *usage
	m.records = append(m.records, &cp)
	return nil
}

func (m *memUsageRepo) SummarizeByUser(_ context.Context, username string) ([]*models.UsageSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCapability := make(map[string]*models.UsageSummary)
	var order []string
	for _, r := range m.records {
		if r.Username != username {
			continue
		}
		s, ok := byCapability[r.Capability]
		if !ok {
			s = &models.UsageSummary{Capability: r.Capability}
			byCapability[r.Capability] = s
			order = append(order, r.Capability)
		}
		s.Invocations++
		if !r.Succeeded {
			s.Failures++
		}
		s.PromptTokens += r.PromptTokens
		s.CompletionTokens += r.CompletionTokens
		s.CostUSD += r.CostUSD
	}
	out := make([]*models.UsageSummary, 0, len(order))
	for _, name := range order {
		out = append(out, byCapability[name])
	}
	return out, nil
}

// testStack wires the full engine against in-memory repositories, the
// same way main does against PostgreSQL.
type testStack struct {
	mux   *http.ServeMux
	orch  *orchestrator.Orchestrator
	auth  *auth.Service
	usage *memUsageRepo
}

func newTestStack() (*testStack, error) {
	logger := zap.NewNop()
	users := &memUserRepo{users: make(map[string]*models.User)}
	projects := &memProjectRepo{projects: make(map[string]*models.Project)}
	knowledge := &memKnowledgeRepo{}
	tokens := &memTokenRepo{tokens: make(map[string]*models.RefreshToken)}
	usage := &memUsageRepo{}

	hasher := crypto.NewCredentialHasher()
	chat := llm.NewMockChatClient()
	embedder := llm.NewLocalEmbedder()
	projectLocks := locks.NewKeyedMutex()

	userAgent := agents.NewUserAgent(users, hasher, logger)
	projectAgent := agents.NewProjectAgent(projects, knowledge, users, projectLocks, logger)
	socraticAgent := agents.NewSocraticAgent(projects, knowledge, chat, embedder,
		agents.SocraticConfig{MaxPhases: 5, MinAnswersPerPhase: 1}, logger)
	conflictAgent := agents.NewConflictAgent(projects, logger)
	analyzerAgent := agents.NewAnalyzerAgent(projects, knowledge, chat, embedder, logger)
	codegenAgent := agents.NewCodegenAgent(projects, chat, logger)
	documentAgent := agents.NewDocumentAgent(projects, knowledge, embedder, logger)
	monitorAgent := agents.NewMonitorAgent(usage, logger)

	orch := orchestrator.New(usage, logger)
	for _, caps := range [][]orchestrator.Capability{
		projectAgent.Capabilities(),
		userAgent.Capabilities(),
		socraticAgent.Capabilities(),
		conflictAgent.Capabilities(),
		analyzerAgent.Capabilities(),
		codegenAgent.Capabilities(),
		documentAgent.Capabilities(),
		monitorAgent.Capabilities(),
	} {
		if err := orch.Register(caps...); err != nil {
			return nil, err
		}
	}

	issuer := auth.NewTokenIssuer("test-secret", 15*time.Minute)
	authService := auth.NewService(userAgent, tokens, issuer, 720*time.Hour, logger)
	mw := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()
	NewHealthHandler(&config.Config{Version: "test", Env: "test"}, logger).RegisterRoutes(mux)
	NewAuthHandler(authService, mw, logger).RegisterRoutes(mux)
	NewCapabilityHandler(orch, mw, logger).RegisterRoutes(mux)

	return &testStack{mux: mux, orch: orch, auth: authService, usage: usage}, nil
}
