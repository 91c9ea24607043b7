// Package ratelimit wraps golang.org/x/time/rate for the two places igfeed
// throttles traffic: a single TokenBucket pacing calls to the upstream web
// API, and a KeyedLimiter holding one bucket per client IP for inbound HTTP
// requests.
//
//	upstream := ratelimit.PerMinute(cfg.Instagram.RequestsPerMinute, 5)
//	if err := upstream.Wait(ctx); err != nil {
//	    return err
//	}
//
//	inbound := ratelimit.NewKeyedLimiter(rate.Limit(5), 10)
//	if !inbound.Allow(clientIP) {
//	    // 429
//	}
package ratelimit
