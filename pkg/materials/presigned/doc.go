// Package presigned signs and validates time-limited links to materials the
// portal serves itself.
//
// Backends with no public URLs of their own (filesystem, memory) hand out
// /files and /download links. With a secret configured those links carry an
// HMAC-SHA256 signature and an expiry, so a link copied out of a listing
// stops working once it expires.
//
//	signer := presigned.New(presigned.WithSecretKey(secret))
//	store := memory.New(presigned.Links(signer, ""))
//	r.With(presigned.Middleware(signer)).Get("/files/{category}/{filename}", view)
package presigned
