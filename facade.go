package keyring

import (
	"fmt"

	keyringcommand "github.com/goliatone/go-keyring/command"
	keyringquery "github.com/goliatone/go-keyring/query"
)

// CommandQueryService is what the facade wraps. *core.Keyring satisfies it.
type CommandQueryService interface {
	keyringcommand.MutatingService
	keyringquery.TokenReader
}

type Commands struct {
	BeginAuth    *keyringcommand.BeginAuthCommand
	CompleteAuth *keyringcommand.CompleteAuthCommand
	DeleteToken  *keyringcommand.DeleteTokenCommand
}

type Queries struct {
	GetToken    *keyringquery.GetTokenQuery
	ListTokens  *keyringquery.ListTokensQuery
	CountTokens *keyringquery.CountTokensQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	tokenReader keyringquery.TokenReader
}

// WithTokenReader routes the query side through an alternate reader, for
// example a cached store, while commands keep hitting the orchestrator.
func WithTokenReader(reader keyringquery.TokenReader) FacadeOption {
	return func(options *facadeOptions) {
		options.tokenReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("keyring: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.tokenReader
	if reader == nil {
		reader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		BeginAuth:    keyringcommand.NewBeginAuthCommand(service),
		CompleteAuth: keyringcommand.NewCompleteAuthCommand(service),
		DeleteToken:  keyringcommand.NewDeleteTokenCommand(service),
	}
	facade.queries = Queries{
		GetToken:    keyringquery.NewGetTokenQuery(reader),
		ListTokens:  keyringquery.NewListTokensQuery(reader),
		CountTokens: keyringquery.NewCountTokensQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
