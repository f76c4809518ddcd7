package env

import (
	"os"
	"strings"
)

const (
	// Prefix is the prefix of every centavo env var
	Prefix = "CENTAVO"

	// DBURLSuffix is the suffix of the Postgres connection string env var
	DBURLSuffix = "_DB_URL"

	// FixerKeySuffix is the suffix of the Fixer access key env var
	FixerKeySuffix = "_FIXER_API_KEY"

	// FixerKeyFallback is the unprefixed Fixer access key env var
	FixerKeyFallback = "FIXER_API_KEY"
)

// FixerKey returns the Fixer access key, preferring the prefixed variable
func FixerKey() string {
	if key := strings.TrimSpace(os.Getenv(Prefix + FixerKeySuffix)); key != "" {
		return key
	}

	return strings.TrimSpace(os.Getenv(FixerKeyFallback))
}
