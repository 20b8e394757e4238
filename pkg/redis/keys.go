package redis

import "strings"

const defaultNamespace = "wts"

// Keyspace builds namespaced keys of the form <namespace>:<kind>:<parts...>.
// Blank parts are skipped so an empty scope never yields "a::b".
type Keyspace string

func (k Keyspace) key(kind string, parts ...string) string {
	ns := strings.TrimSpace(string(k))
	if ns == "" {
		ns = defaultNamespace
	}
	b := strings.Builder{}
	b.WriteString(ns)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}

// InFlightKey guards work on id that is currently running.
func (k Keyspace) InFlightKey(scope, id string) string { return k.key("in_flight", scope, id) }

// RateLimitKey holds a fixed-window counter.
func (k Keyspace) RateLimitKey(parts ...string) string { return k.key("rate_limit", parts...) }

// IdempotencyKey stores a replayable response.
func (k Keyspace) IdempotencyKey(scope, key string) string {
	return k.key("idempotency", scope, key)
}

// LockKey names a distributed lock.
func (k Keyspace) LockKey(name string) string { return k.key("lock", name) }
