package redis

import (
	"context"
	"strings"
	"time"
)

const namespace = "sf"

// incrWindow bumps the counter and starts its expiry on the first hit in
// one round trip, so a crash between the two never leaves an immortal key.
const incrWindow = `local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`

const compareAndDelete = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// FixedWindowAllow counts one hit against scope and reports whether the
// count is still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := run(c, func(s cmdable) (int64, error) {
		return s.Eval(ctx, incrWindow, []string{key("rate_limit", scope)}, window.Milliseconds()).Int64()
	})
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// CompareAndDelete removes key only while it still holds value.
func (c *Client) CompareAndDelete(ctx context.Context, k, value string) (bool, error) {
	n, err := run(c, func(s cmdable) (int64, error) {
		return s.Eval(ctx, compareAndDelete, []string{k}, value).Int64()
	})
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Client) IdempotencyKey(scope, id string) string { return key("idempotency", scope, id) }

func (c *Client) LockKey(name string) string { return key("lock", name) }

// key joins the non-empty parts under the service namespace.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
