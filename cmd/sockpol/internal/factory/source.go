package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/config"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/core"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/logger"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/source/kubernetes"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/source/memory"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/storage/filesystem"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// SourceFactory creates policy sources based on configuration
type SourceFactory struct {
	cfg *config.Config

	// newClientset builds the Kubernetes client; replaced in tests.
	newClientset func() (k8s.Interface, error)
}

// NewSourceFactory creates a new source factory
func NewSourceFactory(cfg *config.Config) *SourceFactory {
	f := &SourceFactory{cfg: cfg}
	f.newClientset = f.buildClientset
	return f
}

// Create creates a policy source based on configuration
func (f *SourceFactory) Create(ctx context.Context) (core.PolicySource, error) {
	switch f.cfg.PolicySource {
	case config.SourceBuiltin:
		logger.Info("Creating built-in policy source", "profile", f.cfg.PolicyProfile)
		src, err := memory.NewProfileSource(f.cfg.PolicyProfile)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceInline:
		logger.Info("Creating inline policy source", "bytes", len(f.cfg.PolicyXML))
		return memory.NewInlineSource(f.cfg.PolicyXML), nil
	case config.SourceFile:
		logger.Info("Creating file policy source", "path", f.cfg.PolicyFile)
		return filesystem.NewFileSource(f.cfg.PolicyFile), nil
	case config.SourceKubernetes:
		return f.createKubernetesSource()
	default:
		return nil, fmt.Errorf("unknown policy source: %s", f.cfg.PolicySource)
	}
}

func (f *SourceFactory) createKubernetesSource() (core.PolicySource, error) {
	logger.Info("Creating Kubernetes policy source",
		"namespace", f.cfg.Namespace,
		"configmap", f.cfg.PolicyConfigMap,
		"key", f.cfg.PolicyConfigMapKey)

	clientset, err := f.newClientset()
	if err != nil {
		return nil, err
	}

	return kubernetes.NewConfigMapSource(clientset, f.cfg.Namespace, f.cfg.PolicyConfigMap, f.cfg.PolicyConfigMapKey), nil
}

func (f *SourceFactory) buildClientset() (k8s.Interface, error) {
	logger.Info("Creating Kubernetes client",
		"runtime", f.cfg.Runtime,
		"kubeconfig", f.cfg.KubeConfigPath,
		"context", f.cfg.KubeContext)

	kubeconfig := f.cfg.KubeConfigPath

	// For non-Kubernetes runtime, fall back to the user's kubeconfig
	if f.cfg.Runtime != config.RuntimeKubernetes && kubeconfig == "" {
		if home := os.Getenv("HOME"); home != "" {
			kubeconfig = home + "/.kube/config"
		}
	}

	configOverrides := &clientcmd.ConfigOverrides{}
	if f.cfg.KubeContext != "" {
		configOverrides.CurrentContext = f.cfg.KubeContext
	}

	var restConfig *rest.Config
	var err error

	if kubeconfig != "" {
		restConfig, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig},
			configOverrides,
		).ClientConfig()

		if err != nil {
			logger.Warn("Failed to load kubeconfig, will try in-cluster config", "error", err)
		}
	}

	// Fallback to in-cluster config (for Kubernetes runtime)
	if restConfig == nil {
		logger.Info("Attempting in-cluster Kubernetes configuration")
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to build kubernetes config (tried kubeconfig and in-cluster): %w", err)
		}
	}

	clientset, err := k8s.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return clientset, nil
}
