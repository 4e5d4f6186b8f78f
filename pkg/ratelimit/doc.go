// Package ratelimit enforces fixed-window request limits in Redis across
// four windows (second, minute, hour, day), keyed per client IP or per
// API key.
package ratelimit
