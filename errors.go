package mapper

import (
	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/storage"
)

// Configuration errors.
var (
	ErrUnknownEndpoint  = core.ErrUnknownEndpoint
	ErrOutdatedEndpoint = core.ErrOutdatedEndpoint
	ErrEmptyInput       = core.ErrEmptyInput
	ErrMissingKey       = core.ErrMissingKey
	ErrMissingSink      = core.ErrMissingSink
	ErrRunNotFound      = storage.ErrRunNotFound
)

// Query failure kinds, matched with errors.Is against a *QueryError.
var (
	ErrTransport        = core.ErrTransport
	ErrTimeout          = core.ErrTimeout
	ErrUnauthorized     = core.ErrUnauthorized
	ErrRemoteValidation = core.ErrRemoteValidation
	ErrRateLimited      = core.ErrRateLimited
)

// Error kinds.
const (
	KindTransport        = core.KindTransport
	KindTimeout          = core.KindTimeout
	KindUnauthorized     = core.KindUnauthorized
	KindRemoteValidation = core.KindRemoteValidation
	KindRateLimited      = core.KindRateLimited
)

// KindOf returns the kind of err, or "" if err is not a *QueryError.
func KindOf(err error) ErrorKind {
	return core.KindOf(err)
}
