// Package apikeys implements opaque API key issuance and validation.
//
// Keys are presented as "inkwell_" prefixed secrets; only a salted SHA-256
// hash is stored. A key carries a permission level, per-window rate limits,
// an optional site pin, and a status that moves through a forward-only
// lifecycle (active, blocked, expired, revoked).
package apikeys
