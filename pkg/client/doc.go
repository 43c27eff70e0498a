// Package client provides the Remote Query Client for the mapper package.
//
// A Client sends one HTTP request per batch of work items and translates
// every transport or protocol failure into a classified core.QueryError,
// so callers always receive exactly one core.Outcome per item.
//
// Most users should import the root package github.com/jdziat/bulk-mapper.
package client
