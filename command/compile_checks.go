package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginAuthMessage]    = (*BeginAuthCommand)(nil)
	_ gocmd.Commander[CompleteAuthMessage] = (*CompleteAuthCommand)(nil)
	_ gocmd.Commander[DeleteTokenMessage]  = (*DeleteTokenCommand)(nil)
)
