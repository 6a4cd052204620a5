package query

import (
	"context"

	"github.com/goliatone/go-keyring/core"
)

// TokenReader is the read-only slice of the keyring that queries consume.
// The orchestrator satisfies it directly.
type TokenReader interface {
	GetToken(ctx context.Context, serviceName, userID, tokenID string) (core.Token, error)
	ListTokens(ctx context.Context, filter core.TokenFilter) ([]core.Token, error)
	CountTokens(ctx context.Context, serviceName, userID string) (int, error)
}

type GetTokenQuery struct {
	reader TokenReader
}

func NewGetTokenQuery(reader TokenReader) *GetTokenQuery {
	return &GetTokenQuery{reader: reader}
}

func (q *GetTokenQuery) Query(ctx context.Context, msg GetTokenMessage) (core.Token, error) {
	if q == nil || q.reader == nil {
		return core.Token{}, queryDependencyError("query: token reader is required")
	}
	return q.reader.GetToken(ctx, msg.ServiceName, msg.UserID, msg.TokenID)
}

type ListTokensQuery struct {
	reader TokenReader
}

func NewListTokensQuery(reader TokenReader) *ListTokensQuery {
	return &ListTokensQuery{reader: reader}
}

func (q *ListTokensQuery) Query(ctx context.Context, msg ListTokensMessage) ([]core.Token, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: token reader is required")
	}
	return q.reader.ListTokens(ctx, msg.Filter)
}

type CountTokensQuery struct {
	reader TokenReader
}

func NewCountTokensQuery(reader TokenReader) *CountTokensQuery {
	return &CountTokensQuery{reader: reader}
}

func (q *CountTokensQuery) Query(ctx context.Context, msg CountTokensMessage) (int, error) {
	if q == nil || q.reader == nil {
		return 0, queryDependencyError("query: token reader is required")
	}
	return q.reader.CountTokens(ctx, msg.ServiceName, msg.UserID)
}
