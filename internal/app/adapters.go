package app

import (
	"strings"
	"time"

	"github.com/charlesng35/blogdesk/internal/auth"
	"github.com/charlesng35/blogdesk/pkg/logger"
	"github.com/charlesng35/blogdesk/pkg/mail"
)

const defaultVerificationTTL = 24 * time.Hour

// ConfigureLogging installs the global zap logger described by the server
// section. Unknown levels fall back to info.
func ConfigureLogging(c ServerConfig) error {
	return logger.InitWithOptions(logger.Options{
		Level:  strings.TrimSpace(c.LogLevel),
		Format: strings.TrimSpace(c.LogFormat),
	})
}

// JWTServiceConfig maps the auth section onto the token service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	cfg := auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: c.JWT.TTL,
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	return cfg
}

// VerificationCodeTTL is how long a registration code stays redeemable.
func (c AuthConfig) VerificationCodeTTL() time.Duration {
	if c.VerificationTTL > 0 {
		return c.VerificationTTL
	}
	return defaultVerificationTTL
}

// SMTPSettings maps the email section onto the mailer. The sender falls back
// to the SMTP username when no from address is configured.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	smtp := c.SMTP
	from := strings.TrimSpace(smtp.From)
	if from == "" && strings.Contains(smtp.Username, "@") {
		from = smtp.Username
	}
	return mail.SMTPSettings{
		Enabled:  smtp.Enabled,
		Host:     strings.TrimSpace(smtp.Host),
		Port:     smtp.Port,
		Username: smtp.Username,
		Password: smtp.Password,
		From:     from,
		UseTLS:   smtp.UseTLS,
		Timeout:  smtp.Timeout,
	}
}
