package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileDefaults(t *testing.T) {
	for _, key := range []string{
		"CORTEX_PROVIDER_API_KEY",
		"CORTEX_PROVIDER_BASE_URL",
		"CORTEX_PROVIDER_MODEL",
		"CORTEX_PROVIDER_RPS",
		"CORTEX_FOCUS_DEFAULT_CAPACITY",
		"CORTEX_DELETE_REMOTE_ON_SOFT_DELETE",
		"CORTEX_REQUEST_TIMEOUT_SECONDS",
		"CORTEX_PROVIDER_MAX_IN_FLIGHT",
	} {
		t.Setenv(key, "")
	}

	p := &Profile{}
	p.FromEnv()

	assert.False(t, p.IsProviderEnabled())
	assert.Equal(t, "https://api.openai.com/v1", p.ProviderBaseURL)
	assert.Equal(t, "gpt-4o", p.ProviderModel)
	assert.Equal(t, 5.0, p.ProviderRPS)
	assert.Equal(t, DefaultFocusCapacity, p.DefaultFocusCapacity)
	assert.False(t, p.DeleteRemoteOnSoftDelete)
	assert.Equal(t, 30, p.RequestTimeout)
	assert.Equal(t, 4, p.ProviderMaxInFlight)
}

func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
		check  func(t *testing.T, p *Profile)
	}{
		{
			name:   "provider key enables provider",
			envVar: "CORTEX_PROVIDER_API_KEY",
			value:  "sk-test",
			check: func(t *testing.T, p *Profile) {
				assert.True(t, p.IsProviderEnabled())
			},
		},
		{
			name:   "focus capacity",
			envVar: "CORTEX_FOCUS_DEFAULT_CAPACITY",
			value:  "3",
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, 3, p.DefaultFocusCapacity)
			},
		},
		{
			name:   "invalid capacity falls back",
			envVar: "CORTEX_FOCUS_DEFAULT_CAPACITY",
			value:  "many",
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, DefaultFocusCapacity, p.DefaultFocusCapacity)
			},
		},
		{
			name:   "remote delete policy",
			envVar: "CORTEX_DELETE_REMOTE_ON_SOFT_DELETE",
			value:  "true",
			check: func(t *testing.T, p *Profile) {
				assert.True(t, p.DeleteRemoteOnSoftDelete)
			},
		},
		{
			name:   "provider max in flight",
			envVar: "CORTEX_PROVIDER_MAX_IN_FLIGHT",
			value:  "16",
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, 16, p.ProviderMaxInFlight)
			},
		},
		{
			name:   "provider rps",
			envVar: "CORTEX_PROVIDER_RPS",
			value:  "0.5",
			check: func(t *testing.T, p *Profile) {
				assert.Equal(t, 0.5, p.ProviderRPS)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			p := &Profile{}
			p.FromEnv()
			tt.check(t, p)
		})
	}
}

func TestProfileValidate(t *testing.T) {
	t.Run("sqlite dsn derived from data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Data: dir}
		require.NoError(t, p.Validate())
		assert.Equal(t, "sqlite", p.Driver)
		assert.Contains(t, p.DSN, "cortex_dev.db")
	})

	t.Run("unknown mode becomes demo", func(t *testing.T) {
		p := &Profile{Mode: "staging", Data: t.TempDir()}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "postgres", Data: t.TempDir()}
		assert.Error(t, p.Validate())
	})

	t.Run("unsupported driver", func(t *testing.T) {
		p := &Profile{Mode: "dev", Driver: "mysql", Data: t.TempDir()}
		assert.Error(t, p.Validate())
	})

	t.Run("negative capacity", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), DefaultFocusCapacity: -1}
		assert.Error(t, p.Validate())
	})

	t.Run("version must be semantic", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), Version: "latest"}
		assert.Error(t, p.Validate())

		p = &Profile{Mode: "dev", Data: t.TempDir(), Version: "0.2.0-dev"}
		assert.NoError(t, p.Validate())
	})

	t.Run("missing data dir", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: "/nonexistent/cortex-data"}
		assert.Error(t, p.Validate())
	})
}
