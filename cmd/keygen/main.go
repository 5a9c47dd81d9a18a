// Command keygen prints a new key suitable for TRAINYARD_CRYPTO_SCRIPT_KEY.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bornholm/trainyard/internal/crypto"
	"github.com/bornholm/trainyard/internal/slogx"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		slog.Error("could not generate key", slogx.Error(err))
		os.Exit(1)
	}

	fmt.Println(key)
}
