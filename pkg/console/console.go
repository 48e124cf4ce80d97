// Package console is the local entry point. It drives the same
// orchestrator as the HTTP surface and prints the same JSON envelopes,
// so a capability invoked here and over the wire produces identical
// bytes.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/agents"
	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/auth"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
)

// Console is an interactive line-oriented shell over the orchestrator.
type Console struct {
	orch    *orchestrator.Orchestrator
	auth    *auth.Service
	in      io.Reader
	out     io.Writer
	logger  *zap.Logger
	session *models.Identity
}

// New creates a console bound to the given streams.
func New(orch *orchestrator.Orchestrator, authService *auth.Service, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	return &Console{
		orch:   orch,
		auth:   authService,
		in:     in,
		out:    out,
		logger: logger.Named("console"),
	}
}

// Run reads commands until EOF or an explicit exit.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if done := c.Execute(ctx, scanner.Text()); done {
			return nil
		}
	}
}

// Execute handles a single command line. It returns true when the
// session should end.
func (c *Console) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		c.printHelp()
	case "capabilities":
		c.printCapabilities()
	case "register":
		c.register(ctx, rest)
	case "login":
		c.login(ctx, rest)
	case "logout":
		c.logout(ctx)
	case "whoami":
		c.whoami()
	case "invoke":
		c.invoke(ctx, rest)
	default:
		fmt.Fprintf(c.out, "unknown command %q, try help\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `commands:
  register <username> <credential> [tier]   create an account and sign in
  login <username> <credential>             sign in
  logout                                    revoke refresh tokens and sign out
  whoami                                    show the current identity
  capabilities                              list registered capabilities
  invoke <capability> [json payload]        run a capability
  exit`)
}

func (c *Console) printCapabilities() {
	for _, info := range c.orch.Capabilities() {
		fmt.Fprintf(c.out, "%-28s %-10s %-12s %s\n", info.Name, info.Agent, info.MinTier, info.Description)
	}
}

func (c *Console) register(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 || len(fields) > 3 {
		fmt.Fprintln(c.out, "usage: register <username> <credential> [tier]")
		return
	}
	payload := &agents.RegisterUserPayload{Username: fields[0], Credential: fields[1]}
	if len(fields) == 3 {
		payload.Tier = models.Tier(fields[2])
	}
	pair, err := c.auth.Register(ctx, payload)
	if err != nil {
		c.renderError(err)
		return
	}
	c.session = models.IdentityOf(pair.User)
	c.renderData(pair.User)
}

func (c *Console) login(ctx context.Context, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		fmt.Fprintln(c.out, "usage: login <username> <credential>")
		return
	}
	pair, err := c.auth.Login(ctx, fields[0], fields[1])
	if err != nil {
		c.renderError(err)
		return
	}
	c.session = models.IdentityOf(pair.User)
	c.renderData(pair.User)
}

func (c *Console) logout(ctx context.Context) {
	if c.session == nil {
		fmt.Fprintln(c.out, "not signed in")
		return
	}
	if err := c.auth.Logout(ctx, c.session.Username); err != nil {
		c.renderError(err)
		return
	}
	c.session = nil
	fmt.Fprintln(c.out, "signed out")
}

func (c *Console) whoami() {
	if c.session == nil {
		fmt.Fprintln(c.out, "not signed in")
		return
	}
	c.renderData(c.session)
}

func (c *Console) invoke(ctx context.Context, args string) {
	name, payload, _ := strings.Cut(args, " ")
	if name == "" {
		fmt.Fprintln(c.out, "usage: invoke <capability> [json payload]")
		return
	}
	outcome := c.orch.Process(ctx, name, json.RawMessage(payload), c.session)
	c.render(outcome)
}

// render prints the envelope the HTTP surface would send for the same
// outcome, byte for byte.
func (c *Console) render(outcome *orchestrator.Outcome) {
	if !outcome.OK() {
		_ = json.NewEncoder(c.out).Encode(map[string]string{
			"error":   outcome.Err.Kind.String(),
			"code":    outcome.Err.Code,
			"message": outcome.Err.Message,
		})
		return
	}
	c.renderData(outcome.Data)
}

func (c *Console) renderData(data any) {
	_ = json.NewEncoder(c.out).Encode(map[string]any{"data": data})
}

func (c *Console) renderError(err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperrors.KindInternal {
		c.logger.Error("console command failed", zap.Error(err))
		appErr = apperrors.Internal(nil)
	}
	_ = json.NewEncoder(c.out).Encode(map[string]string{
		"error":   appErr.Kind.String(),
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}
