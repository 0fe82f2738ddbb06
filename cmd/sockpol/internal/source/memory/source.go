package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	ProfileAll   = "all"
	ProfileLocal = "local"
)

// ErrUnknownProfile is returned for a profile name with no built-in document.
var ErrUnknownProfile = errors.New("unknown policy profile")

// Built-in documents. "all" allows every port, "local" the 4500-4550 range.
var profiles = map[string]string{
	ProfileAll: `<?xml version='1.0'?>
<cross-domain-policy>
        <allow-access-from domain="*" to-ports="*" />
</cross-domain-policy>`,
	ProfileLocal: `<?xml version='1.0'?>
<cross-domain-policy>
	<allow-access-from domain="*" to-ports="4500-4550" />
</cross-domain-policy>`,
}

// Source serves a document held in memory.
type Source struct {
	name string
	xml  string
}

// NewProfileSource returns the built-in document registered under profile.
func NewProfileSource(profile string) (*Source, error) {
	xml, ok := profiles[strings.ToLower(profile)]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownProfile, profile, strings.Join(Profiles(), ", "))
	}
	return &Source{name: "builtin:" + strings.ToLower(profile), xml: xml}, nil
}

// NewInlineSource serves xml as given.
func NewInlineSource(xml string) *Source {
	return &Source{name: "inline", xml: xml}
}

// Profiles lists the built-in profile names.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Load(ctx context.Context) (string, error) {
	return s.xml, nil
}
