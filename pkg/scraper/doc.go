// Package scraper defines the capability boundary between the HTTP API and
// whatever talks to Instagram.
//
// An Engine logs accounts in and hands out Readers. A Reader resolves
// profiles and exposes posts, stories and highlights as lazy sequences, so
// a page of nine posts only pulls as many upstream pages as it needs.
//
// Service implements the read operations of the API on top of a Reader:
//
//	svc := scraper.New(log)
//	reader, err := engine.WithSession(session)
//	if err != nil {
//	    return err
//	}
//	entries, err := svc.ProfilePage(ctx, reader, "instagram", 1)
//
// Errors coming out of a Reader are returned untouched. Upstream messages
// such as "Profile X does not exist." travel to the client verbatim through
// the kind carried by pkg/errors.
package scraper
