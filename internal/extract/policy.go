package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is returned for an unknown backend policy name.
var ErrInvalidPolicy = errors.New("invalid backend policy")

// Policy selects which backends an extraction invokes.
type Policy string

const (
	// PolicyRemote invokes only the remote AI backend.
	PolicyRemote Policy = "remote"
	// PolicyLocal invokes only the local OCR backend.
	PolicyLocal Policy = "local"
	// PolicyRemoteThenLocal tries the remote backend and falls back to the
	// local backend when it fails.
	PolicyRemoteThenLocal Policy = "remote-then-local"
	// PolicyBoth invokes both backends concurrently and keeps the better
	// result.
	PolicyBoth Policy = "both"
)

// DefaultPolicy is used when a request does not name one.
const DefaultPolicy = PolicyRemoteThenLocal

// policyAliases is keyed by lower-case names with "-" and "_" removed.
var policyAliases = map[string]Policy{
	"remote":                  PolicyRemote,
	"remoteonly":              PolicyRemote,
	"local":                   PolicyLocal,
	"localonly":               PolicyLocal,
	"remotethenlocal":         PolicyRemoteThenLocal,
	"remotethenlocalfallback": PolicyRemoteThenLocal,
	"fallback":                PolicyRemoteThenLocal,
	"both":                    PolicyBoth,
}

// ParsePolicy resolves a policy name. Matching ignores case, "-" and "_",
// so "remote-then-local", "RemoteThenLocalFallback" and "remote_only" are
// all accepted. An empty name yields DefaultPolicy.
func ParsePolicy(name string) (Policy, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return DefaultPolicy, nil
	}
	n = strings.NewReplacer("-", "", "_", "").Replace(n)
	if p, ok := policyAliases[n]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrInvalidPolicy, name, strings.Join(policyNames(), ", "))
}

// Policies lists the supported policies.
func Policies() []Policy {
	return []Policy{PolicyRemote, PolicyLocal, PolicyRemoteThenLocal, PolicyBoth}
}

func policyNames() []string {
	ps := Policies()
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return names
}

// Valid reports whether p is a supported policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyRemote, PolicyLocal, PolicyRemoteThenLocal, PolicyBoth:
		return true
	}
	return false
}
