package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-keyring/core"
)

var (
	_ gocmd.Querier[GetTokenMessage, core.Token]     = (*GetTokenQuery)(nil)
	_ gocmd.Querier[ListTokensMessage, []core.Token] = (*ListTokensQuery)(nil)
	_ gocmd.Querier[CountTokensMessage, int]         = (*CountTokensQuery)(nil)
)
