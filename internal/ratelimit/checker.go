package ratelimit

import (
	"context"
	"log/slog"
)

// Checker evaluates an inbound event against two independent limiters:
// one scoped to the client's network identity and one scoped to the
// target short code. The event is admitted only if both admit. Each
// axis has fully independent state and quota.
type Checker struct {
	ip     *SlidingWindow
	code   *SlidingWindow
	logger *slog.Logger
}

// NewChecker creates a composite checker. Both limiters share the same
// backing store but keep fully separate windows per key prefix.
func NewChecker(store Store, ipCfg, codeCfg *Config, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		ip:     NewSlidingWindow(store, ipCfg),
		code:   NewSlidingWindow(store, codeCfg),
		logger: logger,
	}
}

// AllowIP evaluates the client-IP axis only.
func (c *Checker) AllowIP(ctx context.Context, ip string) bool {
	return c.ip.Allow(ctx, "ip:"+ip)
}

// AllowCode evaluates the short-code axis only.
func (c *Checker) AllowCode(ctx context.Context, code string) bool {
	return c.code.Allow(ctx, "code:"+code)
}

// AllowRequest admits the event only if both axes admit it.
func (c *Checker) AllowRequest(ctx context.Context, ip, code string) bool {
	if !c.AllowIP(ctx, ip) {
		c.logger.WarnContext(ctx, "rate limit exceeded for ip", "ip", ip)
		return false
	}
	if !c.AllowCode(ctx, code) {
		c.logger.WarnContext(ctx, "rate limit exceeded for code", "code", code)
		return false
	}
	return true
}
