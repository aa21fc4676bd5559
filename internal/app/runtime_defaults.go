package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/blogdesk/pkg/crypto"
)

// generatedSecret describes a setting filled with random bytes when blank.
type generatedSecret struct {
	key   string
	bytes int
	// target returns the field to fill, or nil when the secret is not needed.
	target func(*Config) *string
}

var generatedSecrets = []generatedSecret{
	{
		key:    "auth.jwt.secret",
		bytes:  48,
		target: func(c *Config) *string { return &c.Auth.JWT.Secret },
	},
	{
		key:   "admin.password",
		bytes: 12,
		target: func(c *Config) *string {
			if strings.TrimSpace(c.Admin.Username) == "" {
				return nil
			}
			return &c.Admin.Password
		},
	},
}

// ApplyRuntimeDefaults fills blank secrets so the server can start without a
// config file. The returned set names the generated keys; values are never
// included so callers may log it.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)
	for _, secret := range generatedSecrets {
		field := secret.target(cfg)
		if field == nil || strings.TrimSpace(*field) != "" {
			continue
		}
		value, err := crypto.GenerateToken(secret.bytes)
		if err != nil {
			return nil, fmt.Errorf("generate %s: %w", secret.key, err)
		}
		*field = value
		generated[secret.key] = true
	}
	return generated, nil
}
