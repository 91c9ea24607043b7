// Package retry provides exponential backoff and retry logic for transient
// failures when talking to the upstream web API.
//
// Retries are driven by error kinds from igfeed/pkg/errors: network, rate
// limit and server errors are retried, everything else fails fast.
// Context cancellation stops the loop between attempts.
//
//	profile, err := retry.DoWithResult(ctx, &retry.Config{
//	    MaxAttempts: 3,
//	    Backoff:     retry.NewKindBackoff(),
//	    Logger:      log,
//	}, func(ctx context.Context) (*Profile, error) {
//	    return fetch(ctx, username)
//	})
//
// KindBackoff waits much longer after a rate limit than after a dropped
// connection.
package retry
