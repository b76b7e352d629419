// Package auth manages operator accounts and API tokens.
//
// Operator passwords are hashed with Argon2id and stored in PHC string
// format. API access uses short-lived HS256 JWTs validated by signature
// only, so request handling never hits the database.
package auth
