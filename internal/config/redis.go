package config

import "fmt"

type Redis struct {
	Addr       string `env:"ADDR,expand" envDefault:"127.0.0.1:6379"`
	Password   string `env:"PASSWORD,unset"`
	DB         int    `env:"DB" envDefault:"0"`
	Queue      string `env:"QUEUE,expand" envDefault:"trainyard:jobs"`
	LogPattern string `env:"LOG_PATTERN,expand" envDefault:"logs:*"`
}

// String hides the password when the configuration is logged.
func (r Redis) String() string {
	password := "<unset>"
	if r.Password != "" {
		password = "<redacted>"
	}

	return fmt.Sprintf("{Addr:%s Password:%s DB:%d Queue:%s LogPattern:%s}", r.Addr, password, r.DB, r.Queue, r.LogPattern)
}
