package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-page-designer/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "designer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Storage.Driver)
	assert.Equal(t, "data", cfg.Storage.Path)
	assert.Equal(t, "catalog.yaml", cfg.Catalog.Path)
	assert.False(t, cfg.Clipboard.SingleStorage)
	assert.Equal(t, 24*time.Hour, cfg.Clipboard.TTL)
	assert.True(t, cfg.Designer.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
storage:
  driver: sqlite
  path: designer.db
clipboard:
  single_storage: true
  ttl: 2h
security:
  users:
    - id: 1
      username: alice
      privilege: globaladmin
    - id: 2
      username: bob
      privilege: editor
      permissions: ["cms.design/design"]
`)
	t.Setenv("DESIGNER_DESIGNER_ENABLED", "false")
	t.Setenv("DESIGNER_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.True(t, cfg.Clipboard.SingleStorage)
	assert.Equal(t, 2*time.Hour, cfg.Clipboard.TTL)
	assert.False(t, cfg.Designer.Enabled, "environment overrides the file")
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Security.Users, 2)

	bob, ok := cfg.Security.Lookup("BOB")
	require.True(t, ok)
	assert.Equal(t, security.User{ID: 2, UserName: "bob", Authenticated: true, Privilege: security.PrivilegeEditor}, bob)

	_, ok = cfg.Security.Lookup("carol")
	assert.False(t, ok)

	authz := cfg.Security.Authorizer()
	assert.True(t, authz.IsAuthorized(context.Background(), 2, security.ResourceDesign, security.PermissionDesign))
	assert.False(t, authz.IsAuthorized(context.Background(), 1, security.ResourceDesign, security.PermissionDesign))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "storage:\n  driver: mongo\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"user without name", "security:\n  users:\n    - id: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "templateID", "home")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"templateID":"home"`)
}
