package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-keyring/core"
)

// MutatingService is the slice of the keyring that commands drive. The
// orchestrator satisfies it directly.
type MutatingService interface {
	BeginAuthorization(ctx context.Context, req core.AuthorizationRequest) (core.AuthorizationRedirect, error)
	FinishAuthorization(ctx context.Context, req core.CallbackRequest) (core.TokenRef, error)
	DeleteToken(ctx context.Context, serviceName, userID, tokenID string) (bool, error)
}

type BeginAuthCommand struct {
	service MutatingService
}

func NewBeginAuthCommand(service MutatingService) *BeginAuthCommand {
	return &BeginAuthCommand{service: service}
}

func (c *BeginAuthCommand) Execute(ctx context.Context, msg BeginAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: begin auth service is required")
	}
	out, err := c.service.BeginAuthorization(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteAuthCommand struct {
	service MutatingService
}

func NewCompleteAuthCommand(service MutatingService) *CompleteAuthCommand {
	return &CompleteAuthCommand{service: service}
}

func (c *CompleteAuthCommand) Execute(ctx context.Context, msg CompleteAuthMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: complete auth service is required")
	}
	out, err := c.service.FinishAuthorization(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteTokenCommand struct {
	service MutatingService
}

func NewDeleteTokenCommand(service MutatingService) *DeleteTokenCommand {
	return &DeleteTokenCommand{service: service}
}

func (c *DeleteTokenCommand) Execute(ctx context.Context, msg DeleteTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delete token service is required")
	}
	deleted, err := c.service.DeleteToken(ctx, msg.ServiceName, msg.UserID, msg.TokenID)
	if err != nil {
		return err
	}
	storeResult(ctx, deleted)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
