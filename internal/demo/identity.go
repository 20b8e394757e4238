package demo

import (
	"strings"

	"github.com/trydo/wts-backend/pkg/enums"
)

// Identity is one signal a demo session is keyed by.
type Identity struct {
	Kind  enums.DemoIdentityKind
	Value string
}

// Key returns the namespaced storage key, e.g. "ip:10.0.0.1".
func (i Identity) Key() string {
	return i.Kind.String() + ":" + i.Value
}

// Identities collects the non-empty signals of a request. The client IP and
// the browser fingerprint are tracked independently.
func Identities(ip, fingerprint string) []Identity {
	out := make([]Identity, 0, 2)
	if ip = strings.TrimSpace(ip); ip != "" {
		out = append(out, Identity{Kind: enums.DemoIdentityIP, Value: ip})
	}
	if fingerprint = strings.TrimSpace(fingerprint); fingerprint != "" {
		out = append(out, Identity{Kind: enums.DemoIdentityFingerprint, Value: fingerprint})
	}
	return out
}

func keysOf(ids []Identity) []string {
	keys := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		key := id.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
