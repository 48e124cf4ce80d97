package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/ident"
	"github.com/mentorstack/mentor-engine/pkg/llm"
	"github.com/mentorstack/mentor-engine/pkg/locks"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// Session states. Hinting and Advancing are transient within a single
// operation; only these two states persist between calls.
const (
	SessionQuestioning = "questioning"
	SessionDone        = "done"
)

// SocraticConfig tunes the counselor state machine.
type SocraticConfig struct {
	// MaxPhases is the highest phase index; answers at the maximum no
	// longer advance it.
	MaxPhases int
	// MinAnswersPerPhase gates explicit phase skips.
	MinAnswersPerPhase int
}

// SocraticSession is the per-project question/answer state.
type SocraticSession struct {
	ID             string    `json:"id"` // generator-issued, "sess_" prefix
	ProjectID      string    `json:"project_id"`
	State          string    `json:"state"`
	Phase          int       `json:"phase"`
	AnswersInPhase int       `json:"answers_in_phase"`
	TotalAnswers   int       `json:"total_answers"`
	CreatedAt      time.Time `json:"created_at"`

	pending   []pendingAnswer
	finishing bool
}

type pendingAnswer struct {
	phase    int
	content  string
	answerer string
}

// SessionView is what socratic operations return to the caller.
type SessionView struct {
	Session  SocraticSession `json:"session"`
	Question string          `json:"question,omitempty"`
}

// HintView carries a hint without any state change.
type HintView struct {
	Hint string `json:"hint"`
}

// FinishView reports the knowledge committed by a finished session.
type FinishView struct {
	Committed int      `json:"committed"`
	EntryIDs  []string `json:"entry_ids"`
}

// SocraticAgent drives the per-project mentoring state machine. Answers
// accumulate as candidate knowledge and become KnowledgeEntry rows only
// when the session finishes.
type SocraticAgent interface {
	Start(ctx context.Context, caller *models.Identity, projectID string) (*SessionView, error)
	Answer(ctx context.Context, caller *models.Identity, p *AnswerPayload) (*SessionView, error)
	Hint(ctx context.Context, caller *models.Identity, projectID string) (*HintView, error)
	Skip(ctx context.Context, caller *models.Identity, projectID string) (*SessionView, error)
	Finish(ctx context.Context, caller *models.Identity, projectID string) (*FinishView, error)
	Capabilities() []orchestrator.Capability
}

// AnswerPayload submits one answer to the current question.
type AnswerPayload struct {
	ProjectID string `json:"project_id"`
	Content   string `json:"content"`
}

type socraticAgent struct {
	projects  repositories.ProjectRepository
	knowledge repositories.KnowledgeRepository
	chat      llm.ChatClient
	embedder  llm.Embedder
	cfg       SocraticConfig

	mu       sync.Mutex
	sessions map[string]*SocraticSession // by project ID
	locks    *locks.KeyedMutex

	logger *zap.Logger
}

var _ SocraticAgent = (*socraticAgent)(nil)

// NewSocraticAgent creates the counselor agent.
func NewSocraticAgent(
	projects repositories.ProjectRepository,
	knowledge repositories.KnowledgeRepository,
	chat llm.ChatClient,
	embedder llm.Embedder,
	cfg SocraticConfig,
	logger *zap.Logger,
) SocraticAgent {
	if cfg.MaxPhases < 1 {
		cfg.MaxPhases = 5
	}
	return &socraticAgent{
		projects:  projects,
		knowledge: knowledge,
		chat:      chat,
		embedder:  embedder,
		cfg:       cfg,
		sessions:  make(map[string]*SocraticSession),
		locks:     locks.NewKeyedMutex(),
		logger:    logger.Named("agent.socratic"),
	}
}

// phaseQuestions holds the canned question per phase theme. Phases past
// the last entry reuse the final theme.
var phaseQuestions = []string{
	"What problem does this project solve, and for whom?",
	"Who are the users, and what must the first version let them do?",
	"Which technologies have you chosen so far, and what drove each choice?",
	"How will the pieces fit together, and where does the data live?",
	"What is most likely to go wrong, and how will you know it has?",
	"How will you ship it, and what does done look like?",
}

func questionFor(phase int) string {
	if phase >= len(phaseQuestions) {
		phase = len(phaseQuestions) - 1
	}
	return phaseQuestions[phase]
}

func (a *socraticAgent) Start(ctx context.Context, caller *models.Identity, projectID string) (*SessionView, error) {
	project, err := a.loadProject(ctx, caller, projectID)
	if err != nil {
		return nil, err
	}

	a.locks.Lock(project.ID)
	defer a.locks.Unlock(project.ID)

	a.mu.Lock()
	existing := a.sessions[project.ID]
	a.mu.Unlock()
	if existing != nil && existing.State != SessionDone {
		return nil, apperrors.Business("session_active", "a session is already running for this project")
	}

	session := &SocraticSession{
		ID:        ident.Generate(ident.KindSession),
		ProjectID: project.ID,
		State:     SessionQuestioning,
		Phase:     0,
		CreatedAt: time.Now(),
	}
	a.mu.Lock()
	a.sessions[project.ID] = session
	a.mu.Unlock()

	a.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("project_id", project.ID))
	return &SessionView{Session: *session, Question: questionFor(0)}, nil
}

func (a *socraticAgent) Answer(ctx context.Context, caller *models.Identity, p *AnswerPayload) (*SessionView, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return nil, apperrors.Validation("missing_content", "content is required")
	}
	if _, err := a.loadProject(ctx, caller, p.ProjectID); err != nil {
		return nil, err
	}

	a.locks.Lock(p.ProjectID)
	defer a.locks.Unlock(p.ProjectID)

	session, err := a.activeSession(p.ProjectID)
	if err != nil {
		return nil, err
	}

	session.pending = append(session.pending, pendingAnswer{
		phase:    session.Phase,
		content:  content,
		answerer: caller.Username,
	})
	session.TotalAnswers++
	session.AnswersInPhase++
	if session.Phase < a.cfg.MaxPhases {
		session.Phase++
		session.AnswersInPhase = 0
	}

	return &SessionView{Session: *session, Question: questionFor(session.Phase)}, nil
}

// Hint returns a suggestion derived from the project's current context.
// The model call happens outside the per-project section and the phase
// never changes.
func (a *socraticAgent) Hint(ctx context.Context, caller *models.Identity, projectID string) (*HintView, error) {
	project, err := a.loadProject(ctx, caller, projectID)
	if err != nil {
		return nil, err
	}

	a.locks.Lock(projectID)
	session, err := a.activeSession(projectID)
	if err != nil {
		a.locks.Unlock(projectID)
		return nil, err
	}
	question := questionFor(session.Phase)
	a.locks.Unlock(projectID)

	prompt := fmt.Sprintf(
		"Project %q (progress %d%%).\nTechnology decisions: %s.\nThe mentee is stuck on: %s\nOffer one short hint that nudges them toward an answer without giving it away.",
		project.Name, project.Progress, decisionList(project), question)

	hint, usage, err := a.chat.Complete(ctx,
		"You are a Socratic mentor. Reply with a single guiding hint, two sentences at most.",
		prompt)
	orchestrator.AddUsage(ctx, usage)
	if err != nil {
		return nil, fmt.Errorf("hint generation: %w", err)
	}
	return &HintView{Hint: strings.TrimSpace(hint)}, nil
}

func (a *socraticAgent) Skip(ctx context.Context, caller *models.Identity, projectID string) (*SessionView, error) {
	if _, err := a.loadProject(ctx, caller, projectID); err != nil {
		return nil, err
	}

	a.locks.Lock(projectID)
	defer a.locks.Unlock(projectID)

	session, err := a.activeSession(projectID)
	if err != nil {
		return nil, err
	}
	if session.AnswersInPhase < a.cfg.MinAnswersPerPhase {
		return nil, apperrors.Businessf("phase_incomplete",
			"phase %d needs %d answer(s) before it can be skipped", session.Phase, a.cfg.MinAnswersPerPhase)
	}
	if session.Phase >= a.cfg.MaxPhases {
		return nil, apperrors.Business("phase_at_maximum", "the final phase cannot be skipped")
	}

	session.Phase++
	session.AnswersInPhase = 0
	return &SessionView{Session: *session, Question: questionFor(session.Phase)}, nil
}

// Finish commits the accumulated answers as knowledge entries and then
// marks the session done. The session turns terminal only after the
// commit succeeds, so a failed finish can be retried without losing
// answers.
func (a *socraticAgent) Finish(ctx context.Context, caller *models.Identity, projectID string) (*FinishView, error) {
	if _, err := a.loadProject(ctx, caller, projectID); err != nil {
		return nil, err
	}

	a.locks.Lock(projectID)
	session, err := a.activeSession(projectID)
	if err != nil {
		a.locks.Unlock(projectID)
		return nil, err
	}
	if session.finishing {
		a.locks.Unlock(projectID)
		return nil, apperrors.Business("finish_in_progress", "the session is already being finished")
	}
	if len(session.pending) == 0 {
		session.State = SessionDone
		a.locks.Unlock(projectID)
		return &FinishView{Committed: 0, EntryIDs: []string{}}, nil
	}
	session.finishing = true
	answers := append([]pendingAnswer(nil), session.pending...)
	a.locks.Unlock(projectID)

	// Embedding and persistence happen outside the keyed section.
	ids, commitErr := a.commitAnswers(ctx, projectID, answers)

	a.locks.Lock(projectID)
	session.finishing = false
	// Answers snapshot a prefix of pending; drop exactly what committed.
	session.pending = session.pending[len(ids):]
	if commitErr == nil {
		session.State = SessionDone
	}
	a.locks.Unlock(projectID)

	if commitErr != nil {
		return nil, commitErr
	}

	a.logger.Info("session finished",
		zap.String("session_id", session.ID),
		zap.String("project_id", projectID),
		zap.Int("committed", len(ids)))
	return &FinishView{Committed: len(ids), EntryIDs: ids}, nil
}

// commitAnswers embeds and persists answers, returning the IDs of the
// entries that were actually created.
func (a *socraticAgent) commitAnswers(ctx context.Context, projectID string, answers []pendingAnswer) ([]string, error) {
	contents := make([]string, len(answers))
	for i, ans := range answers {
		contents[i] = ans.content
	}
	vectors, err := a.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		a.logger.Error("failed to embed session answers",
			zap.String("project_id", projectID), zap.Error(err))
		return nil, fmt.Errorf("embed answers: %w", err)
	}

	ids := make([]string, 0, len(answers))
	for i, ans := range answers {
		entry := &models.KnowledgeEntry{
			ID:        ident.Generate(ident.KindKnowledge),
			ProjectID: projectID,
			Content:   ans.content,
			Source:    "socratic_answer",
			Embedding: vectors[i],
		}
		if err := a.knowledge.Create(ctx, entry); err != nil {
			return ids, err
		}
		ids = append(ids, entry.ID)
	}
	return ids, nil
}

func (a *socraticAgent) activeSession(projectID string) (*SocraticSession, error) {
	a.mu.Lock()
	session := a.sessions[projectID]
	a.mu.Unlock()
	if session == nil {
		return nil, apperrors.Business("no_session", "no session for this project; start one first")
	}
	if session.State == SessionDone {
		return nil, apperrors.Business("session_done", "the session has finished")
	}
	return session, nil
}

func (a *socraticAgent) loadProject(ctx context.Context, caller *models.Identity, projectID string) (*models.Project, error) {
	if projectID == "" {
		return nil, apperrors.Validation("missing_project_id", "project_id is required")
	}
	project, err := a.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("project_not_found", "project not found")
		}
		return nil, err
	}
	if !canEdit(project, caller.Username) {
		return nil, errProjectForbidden
	}
	return project, nil
}

func decisionList(p *models.Project) string {
	if len(p.Decisions) == 0 {
		return "none yet"
	}
	values := make([]string, len(p.Decisions))
	for i, d := range p.Decisions {
		values[i] = d.Value
	}
	return strings.Join(values, ", ")
}

// Capabilities returns the counselor's registry entries.
func (a *socraticAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "socratic.start",
			Description: "Start a mentoring session for a project",
			Agent:       "socratic",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Start(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
		{
			Name:        "socratic.answer",
			Description: "Answer the current question",
			Agent:       "socratic",
			MinTier:     models.TierFree,
			Validate:    validateAs[AnswerPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Answer(ctx, caller, payload.(*AnswerPayload))
			},
		},
		{
			Name:        "socratic.hint",
			Description: "Request a hint for the current question",
			Agent:       "socratic",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Hint(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
		{
			Name:        "socratic.skip",
			Description: "Skip to the next phase",
			Agent:       "socratic",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Skip(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
		{
			Name:        "socratic.finish",
			Description: "Finish the session and commit its answers as knowledge",
			Agent:       "socratic",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Finish(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
	}
}
