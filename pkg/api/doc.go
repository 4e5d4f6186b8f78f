// Package api exposes the HTTP surface: site, membership, API key, and
// content-workflow endpoints, all gated behind authentication and rate
// limiting.
package api
