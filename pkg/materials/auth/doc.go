// Package auth answers "who is this and may they do that" for the portal:
// credential checks against a static table or a postgres users table, and
// JWT session tokens carrying the caller's role.
package auth
