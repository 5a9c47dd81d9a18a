package config

type Upload struct {
	MaxScriptSize  int64 `env:"MAX_SCRIPT_SIZE" envDefault:"5242880"`
	MaxRuntimeSize int64 `env:"MAX_RUNTIME_SIZE" envDefault:"21474836480"`
}
