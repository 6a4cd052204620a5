package sqlstore

import "github.com/goliatone/go-keyring/core"

var (
	_ core.TokenStore             = (*TokenStore)(nil)
	_ core.TokenStore             = (*CachedTokenStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
