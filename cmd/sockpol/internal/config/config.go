package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RuntimeEnvironment represents the execution environment
type RuntimeEnvironment string

const (
	RuntimeKubernetes RuntimeEnvironment = "kubernetes"
	RuntimeContainer  RuntimeEnvironment = "container"
	RuntimeVM         RuntimeEnvironment = "vm"
)

// PolicySource represents where the policy document is read from
type PolicySource string

const (
	SourceBuiltin    PolicySource = "builtin"
	SourceInline     PolicySource = "inline"
	SourceFile       PolicySource = "file"
	SourceKubernetes PolicySource = "kubernetes"
)

// Config holds all application configuration
type Config struct {
	// Core
	Debug     bool
	LogFormat string // text, json

	// Runtime
	Runtime   RuntimeEnvironment
	Namespace string

	// Policy server
	PolicyPort  int
	IdleTimeout time.Duration

	// Policy document
	PolicySource       PolicySource
	PolicyProfile      string
	PolicyXML          string
	PolicyFile         string
	PolicyConfigMap    string
	PolicyConfigMapKey string
	KubeConfigPath     string
	KubeContext        string

	// Health server
	HealthServerEnabled bool
	HealthServerPort    string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	idleTimeout, err := getEnvDuration("IDLE_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		// Core
		Debug:     getEnvBool("DEBUG", false),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		// Runtime - Auto-detect or explicit
		Runtime:   determineRuntime(),
		Namespace: determineNamespace(),

		// Policy server
		PolicyPort:  getEnvInt("POLICY_PORT", 843),
		IdleTimeout: idleTimeout,

		// Policy document
		PolicySource:       determinePolicySource(),
		PolicyProfile:      strings.ToLower(getEnv("POLICY_PROFILE", "all")),
		PolicyXML:          os.Getenv("POLICY_XML"),
		PolicyFile:         getEnv("POLICY_FILE", ""),
		PolicyConfigMap:    getEnv("POLICY_CONFIGMAP", ""),
		PolicyConfigMapKey: getEnv("POLICY_CONFIGMAP_KEY", "policy.xml"),
		KubeConfigPath:     getEnv("KUBECONFIG", ""),
		KubeContext:        getEnv("KUBE_CONTEXT", ""),

		// Health server
		HealthServerEnabled: getEnvBool("HEALTH_SERVER_ENABLED", true),
		HealthServerPort:    getEnv("HEALTH_SERVER_PORT", "8080"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate ensures configuration is coherent
func (c *Config) validate() error {
	if c.PolicyPort < 0 || c.PolicyPort > 65535 {
		return fmt.Errorf("invalid POLICY_PORT: %d", c.PolicyPort)
	}

	if c.IdleTimeout < 0 {
		return fmt.Errorf("IDLE_TIMEOUT must not be negative: %s", c.IdleTimeout)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT: %s (supported: text, json)", c.LogFormat)
	}

	switch c.PolicySource {
	case SourceBuiltin:
		// profile names are checked by the memory source
	case SourceInline:
		if c.PolicyXML == "" {
			return fmt.Errorf("POLICY_XML must be set when using inline policy source")
		}
	case SourceFile:
		if c.PolicyFile == "" {
			return fmt.Errorf("POLICY_FILE must be set when using file policy source")
		}
	case SourceKubernetes:
		if c.PolicyConfigMap == "" {
			return fmt.Errorf("POLICY_CONFIGMAP must be set when using kubernetes policy source")
		}
		if c.Runtime == RuntimeContainer && c.KubeConfigPath == "" {
			return fmt.Errorf("kubernetes policy source in container runtime requires KUBECONFIG path")
		}
	default:
		return fmt.Errorf("unsupported POLICY_SOURCE: %s (supported: builtin, inline, file, kubernetes)", c.PolicySource)
	}

	if c.HealthServerEnabled {
		if port, err := strconv.Atoi(c.HealthServerPort); err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid HEALTH_SERVER_PORT: %s", c.HealthServerPort)
		}
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func determineRuntime() RuntimeEnvironment {
	// Explicit runtime setting
	if runtime := os.Getenv("RUNTIME"); runtime != "" {
		switch strings.ToLower(runtime) {
		case "kubernetes", "k8s":
			return RuntimeKubernetes
		case "container", "docker":
			return RuntimeContainer
		case "vm", "virtual-machine", "bare-metal":
			return RuntimeVM
		}
	}

	// Auto-detect: Check if running in Kubernetes
	if _, err := os.Stat("/var/run/secrets/kubernetes.io/serviceaccount"); err == nil {
		return RuntimeKubernetes
	}

	// Auto-detect: Check if running in container
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return RuntimeContainer
	}

	return RuntimeVM
}

func determineNamespace() string {
	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}

	// Kubernetes downward API
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}

	// Read from service account (in-cluster)
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}

	return "default"
}

func determinePolicySource() PolicySource {
	// Explicit source
	if source := os.Getenv("POLICY_SOURCE"); source != "" {
		switch strings.ToLower(source) {
		case "builtin", "profile":
			return SourceBuiltin
		case "inline", "env":
			return SourceInline
		case "file", "filesystem":
			return SourceFile
		case "kubernetes", "k8s", "configmap":
			return SourceKubernetes
		}
		return PolicySource(source)
	}

	// Auto-detect based on what is configured
	if os.Getenv("POLICY_XML") != "" {
		return SourceInline
	}
	if os.Getenv("POLICY_FILE") != "" {
		return SourceFile
	}
	if os.Getenv("POLICY_CONFIGMAP") != "" {
		return SourceKubernetes
	}

	return SourceBuiltin
}
