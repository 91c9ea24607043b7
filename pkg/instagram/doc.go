// Package instagram implements scraper.Engine on top of Instagram's web API.
//
// The Engine holds what is shared between requests: the HTTP client, the
// upstream rate limiter and the retry policy. Each Reader it hands out is a
// *Client with its own cookie map, so requests for different accounts never
// share credentials:
//
//	engine := instagram.NewEngine(cfg.Instagram, log)
//
//	session, err := engine.Login(ctx, "user", "password")
//	var tfa *scraper.TwoFactorRequiredError
//	if errors.As(err, &tfa) {
//	    session, err = engine.TwoFactorLogin(ctx, tfa.Challenge, code)
//	}
//
//	reader, err := engine.WithSession(session)
//	profile, err := reader.ResolveProfile(ctx, "instagram")
//	for item, err := range reader.Posts(ctx, profile) {
//	    // ...
//	}
//
// GET calls are retried on network errors, 429 and 5xx responses with the
// backoff from pkg/retry. Login calls are sent once.
package instagram
