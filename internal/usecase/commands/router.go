package commands

import (
	"context"
	"strings"

	"liveTTS/internal/domain"
)

const DefaultPrefix = "!"

type Router struct {
	prefix   string
	cmdIndex map[string]Command
}

func NewRouter(prefix string) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Router{
		prefix:   prefix,
		cmdIndex: make(map[string]Command),
	}
}

func (r *Router) Prefix() string { return r.prefix }

func (r *Router) Register(cmd Command) {
	r.cmdIndex[strings.ToLower(cmd.Name())] = cmd
	for _, alias := range cmd.Aliases() {
		r.cmdIndex[strings.ToLower(alias)] = cmd
	}
}

// IsCommand reports whether text starts with the command prefix.
func (r *Router) IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), r.prefix)
}

// Handle dispatches msg to a registered command. It reports false when the
// message is not a known command; unknown commands are left to other bots.
func (r *Router) Handle(ctx context.Context, msg domain.Message, teamLevel int) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, r.prefix) {
		return false, nil
	}

	withoutPrefix := strings.TrimPrefix(text, r.prefix)
	parts := strings.Fields(withoutPrefix)
	if len(parts) == 0 {
		return false, nil
	}

	cmd, ok := r.cmdIndex[strings.ToLower(parts[0])]
	if !ok {
		return false, nil
	}

	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(withoutPrefix), parts[0]))
	return true, cmd.Handle(ctx, &Context{
		Message:   msg,
		TeamLevel: teamLevel,
		Raw:       raw,
		Args:      parts[1:],
	})
}
