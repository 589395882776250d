// Package auth authenticates gate operators.
//
// Operators are declared in configuration with an Argon2id password hash.
// A successful login returns a short-lived HS256 JWT; the API accepts it as
// a bearer token on every protected route. There is no refresh token and no
// server-side session: revoking access means removing the operator from the
// config and restarting.
//
//	hash, _ := auth.HashPassword("s3cret")           // store in config
//	a, _ := auth.NewAuthenticator(ops, secret, "gate-001", time.Hour)
//	tok, err := a.Login("guard", "s3cret")
//	user, err := a.Verify(tok.AccessToken)
package auth
