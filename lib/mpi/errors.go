package mpi

import (
	"github.com/ValentinKolb/dMPI/rpc/common"
)

// Error kinds of the public surface. Every error returned by this package
// matches one of them with errors.Is.
var (
	ErrInvalidRank       = common.ErrInvalidRank
	ErrInvalidTag        = common.ErrInvalidTag
	ErrMalformedLayout   = common.ErrMalformedLayout
	ErrTypeNotCommitted  = common.ErrTypeNotCommitted
	ErrAlreadyCommitted  = common.ErrAlreadyCommitted
	ErrCountMismatch     = common.ErrCountMismatch
	ErrRequestCompleted  = common.ErrRequestCompleted
	ErrFinalized         = common.ErrFinalized
	ErrAborted           = common.ErrAborted
	ErrTransport         = common.ErrTransport
	ErrInvalidOp         = common.ErrInvalidOp
	ErrInvalidConfig     = common.ErrInvalidConfig
	ErrUnsupportedFormat = common.ErrUnsupportedFormat
)
