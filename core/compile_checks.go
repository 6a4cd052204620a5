package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Registry     = (*ServiceRegistry)(nil)
	_ TokenStore   = (*MemoryTokenStore)(nil)
	_ StateCodec   = (*HMACStateCodec)(nil)
	_ NonceService = (*HMACNonceService)(nil)
	_ TokenCodec   = JSONTokenCodec{}
	_ TokenCodec   = LegacySecretCodec{}
	_ URLBuilder   = StaticURLBuilder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
