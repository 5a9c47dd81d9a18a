package config

type Crypto struct {
	// ScriptKey is the 32-byte AES-256 key protecting stored scripts,
	// given either raw or hex encoded.
	ScriptKey string `env:"SCRIPT_KEY,unset"`
}

// String hides the key when the configuration is logged.
func (c Crypto) String() string {
	if c.ScriptKey == "" {
		return "{ScriptKey:<unset>}"
	}

	return "{ScriptKey:<redacted>}"
}
