package constant

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// Default membership list keys, one per chain family. The "_sol" suffix
	// marks the case-sensitive namespace.
	DefaultEVMListKey    = "walletstream_monitored_users_evm"
	DefaultSolanaListKey = "walletstream_monitored_users_sol"

	// Success sentinel for on-chain execution status.
	TxStatusSuccess = 1
)
