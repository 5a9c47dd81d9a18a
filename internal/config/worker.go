package config

type Worker struct {
	// Token is the bearer token workers present on the /worker/ callbacks.
	Token string `env:"TOKEN,unset"`
}

// String hides the token when the configuration is logged.
func (w Worker) String() string {
	if w.Token == "" {
		return "{Token:<unset>}"
	}

	return "{Token:<redacted>}"
}
