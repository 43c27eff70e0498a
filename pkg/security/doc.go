// Package security provides validation, sanitization, and limits for the mapper package.
//
// This package includes:
//   - Input preparation (trimming, truncation, newline folding)
//   - Error message sanitization before errors reach the sink
//   - Clamping functions to enforce safe limits on threads, retries and timeouts
//   - Constants defining the hard limits that protect the remote service
//
// Most users should import the root package github.com/jdziat/bulk-mapper
// which re-exports these functions.
package security
