// Package identity verifies bearer tokens issued by an external identity
// provider. Signing keys are fetched from a JWKS endpoint and cached with a
// TTL; verified subjects are mapped to stable internal UUIDs.
package identity
