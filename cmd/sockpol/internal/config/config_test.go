package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DEBUG", "LOG_FORMAT", "RUNTIME", "NAMESPACE", "POD_NAMESPACE",
	"POLICY_PORT", "IDLE_TIMEOUT", "POLICY_SOURCE", "POLICY_PROFILE", "POLICY_XML",
	"POLICY_FILE", "POLICY_CONFIGMAP", "POLICY_CONFIGMAP_KEY", "KUBECONFIG", "KUBE_CONTEXT",
	"HEALTH_SERVER_ENABLED", "HEALTH_SERVER_PORT",
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	t.Setenv("RUNTIME", "vm")
	t.Setenv("NAMESPACE", "games")
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.Debug)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, RuntimeVM, cfg.Runtime)
	assert.Equal(t, "games", cfg.Namespace)
	assert.Equal(t, 843, cfg.PolicyPort)
	assert.Zero(t, cfg.IdleTimeout)
	assert.Equal(t, SourceBuiltin, cfg.PolicySource)
	assert.Equal(t, "all", cfg.PolicyProfile)
	assert.Equal(t, "policy.xml", cfg.PolicyConfigMapKey)
	assert.True(t, cfg.HealthServerEnabled)
	assert.Equal(t, "8080", cfg.HealthServerPort)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		"DEBUG":          "true",
		"LOG_FORMAT":     "JSON",
		"POLICY_PORT":    "8430",
		"IDLE_TIMEOUT":   "15s",
		"POLICY_PROFILE": "Local",
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8430, cfg.PolicyPort)
	assert.Equal(t, 15*time.Second, cfg.IdleTimeout)
	assert.Equal(t, "local", cfg.PolicyProfile)
}

func TestPolicySourceDetection(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want PolicySource
	}{
		{name: "default", env: nil, want: SourceBuiltin},
		{name: "inline xml", env: map[string]string{"POLICY_XML": "<cross-domain-policy/>"}, want: SourceInline},
		{name: "file path", env: map[string]string{"POLICY_FILE": "/etc/sockpol/policy.xml"}, want: SourceFile},
		{name: "configmap", env: map[string]string{"POLICY_CONFIGMAP": "sockpol"}, want: SourceKubernetes},
		{name: "explicit alias", env: map[string]string{"POLICY_SOURCE": "k8s", "POLICY_CONFIGMAP": "sockpol"}, want: SourceKubernetes},
		{name: "explicit wins", env: map[string]string{"POLICY_SOURCE": "profile", "POLICY_FILE": "/tmp/x.xml"}, want: SourceBuiltin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)

			cfg, err := LoadFromEnv()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.PolicySource)
		})
	}
}

func TestLoadFromEnvValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "port out of range", env: map[string]string{"POLICY_PORT": "70000"}, wantErr: "POLICY_PORT"},
		{name: "bad duration", env: map[string]string{"IDLE_TIMEOUT": "soon"}, wantErr: "IDLE_TIMEOUT"},
		{name: "negative duration", env: map[string]string{"IDLE_TIMEOUT": "-1s"}, wantErr: "IDLE_TIMEOUT"},
		{name: "log format", env: map[string]string{"LOG_FORMAT": "xml"}, wantErr: "LOG_FORMAT"},
		{name: "unknown source", env: map[string]string{"POLICY_SOURCE": "vault"}, wantErr: "POLICY_SOURCE"},
		{name: "file without path", env: map[string]string{"POLICY_SOURCE": "file"}, wantErr: "POLICY_FILE"},
		{name: "inline without xml", env: map[string]string{"POLICY_SOURCE": "inline"}, wantErr: "POLICY_XML"},
		{name: "kubernetes without configmap", env: map[string]string{"POLICY_SOURCE": "kubernetes"}, wantErr: "POLICY_CONFIGMAP"},
		{
			name:    "kubernetes in container without kubeconfig",
			env:     map[string]string{"RUNTIME": "docker", "POLICY_CONFIGMAP": "sockpol"},
			wantErr: "KUBECONFIG",
		},
		{name: "health port", env: map[string]string{"HEALTH_SERVER_PORT": "http"}, wantErr: "HEALTH_SERVER_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)

			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHealthPortIgnoredWhenDisabled(t *testing.T) {
	setEnv(t, map[string]string{
		"HEALTH_SERVER_ENABLED": "false",
		"HEALTH_SERVER_PORT":    "http",
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.HealthServerEnabled)
}
