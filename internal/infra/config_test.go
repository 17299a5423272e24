package infra

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWTSecret:               strings.Repeat("s", 32),
		B2KeyID:                 "key",
		B2ApplicationKey:        "secret",
		B2BucketName:            "brokenpicturephone",
		B2PublicHost:            "f005.backblazeb2.com",
		ImportUploadConcurrency: 4,
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.ImportUploadConcurrency = 0
	assert.ErrorContains(t, cfg.Validate(), "IMPORT_UPLOAD_CONCURRENCY")

	cfg = validConfig()
	cfg.JWTSecret = "short"
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg.AllowInsecureDefaults = true
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_PanelURLBudget(t *testing.T) {
	cfg := validConfig()
	assert.LessOrEqual(t, cfg.longestPanelURL(), 200)

	cfg.B2BucketName = strings.Repeat("b", 120)
	cfg.AllowInsecureDefaults = true
	assert.ErrorContains(t, cfg.Validate(), "too long")
}
