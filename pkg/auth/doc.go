// Package auth implements the login flow and the per-request access
// decision of the API.
//
// Flow.Login and Flow.Login2FA return a LoginResult tagged Success,
// ChallengeRequired or Failed. A challenge is parked in a PendingTable
// until the verification code arrives or the entry expires.
//
// Resolver maps the identity carried by a bearer token to an Access: routes
// that need an account call Require, routes that can fall back to anonymous
// reads call Optional and get an explicit Anonymous or Accessed variant.
package auth
