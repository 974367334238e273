package commands

import (
	"context"

	"liveTTS/internal/domain"
)

type Command interface {
	Name() string
	Aliases() []string
	Handle(ctx context.Context, c *Context) error
}

type Context struct {
	Message domain.Message
	// TeamLevel is the sender's level after subscriber tier resolution.
	TeamLevel int

	Raw  string
	Args []string
}
