package kubernetes

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrKeyNotFound is returned when the ConfigMap exists but lacks the policy key.
var ErrKeyNotFound = errors.New("policy key not found in configmap")

// ConfigMapSource reads the policy document from a key of a ConfigMap.
type ConfigMapSource struct {
	clientset kubernetes.Interface
	namespace string
	name      string
	key       string
}

func NewConfigMapSource(clientset kubernetes.Interface, namespace, name, key string) *ConfigMapSource {
	return &ConfigMapSource{
		clientset: clientset,
		namespace: namespace,
		name:      name,
		key:       key,
	}
}

func (s *ConfigMapSource) Name() string {
	return fmt.Sprintf("configmap:%s/%s[%s]", s.namespace, s.name, s.key)
}

func (s *ConfigMapSource) Load(ctx context.Context) (string, error) {
	cm, err := s.clientset.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", fmt.Errorf("configmap %s/%s not found: %w", s.namespace, s.name, err)
		}
		return "", fmt.Errorf("failed to get configmap %s/%s: %w", s.namespace, s.name, err)
	}

	if xml, ok := cm.Data[s.key]; ok {
		return xml, nil
	}
	if raw, ok := cm.BinaryData[s.key]; ok {
		return string(raw), nil
	}
	return "", fmt.Errorf("%w: %s/%s has no key %q", ErrKeyNotFound, s.namespace, s.name, s.key)
}
