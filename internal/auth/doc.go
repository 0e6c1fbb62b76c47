// Package auth guards the control routes with bearer tokens.
//
// Tokens are JWTs signed either with a shared HS256 secret or with an
// RS256 key whose public half is configured as PEM. Claims carry a subject,
// roles and scopes: viewers may read unit state, controllers may also run
// games and send unit commands.
package auth
