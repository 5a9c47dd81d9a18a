package config

type Seed struct {
	Enabled         bool     `env:"ENABLED,expand" envDefault:"true"`
	DefaultRuntimes []string `env:"DEFAULT_RUNTIMES,expand" envSeparator:","`
}
