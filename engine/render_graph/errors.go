package render_graph

import "errors"

var (
	ErrNilNode              = errors.New("render node is nil")
	ErrNodeAlreadyAdded     = errors.New("render node is already in the graph")
	ErrInputAlreadyBound    = errors.New("render node input is already bound")
	ErrInputNotSupported    = errors.New("render node does not accept an input")
	ErrInputNotRebindable   = errors.New("render node input cannot be released for re-binding")
	ErrNothingToWire        = errors.New("graph has no previous output to wire")
	ErrNodeNotReady         = errors.New("render node is not ready")
	ErrGraphFull            = errors.New("render graph is at its node limit")
	ErrInvalidSurfaceSize   = errors.New("surface size must be positive")
	ErrNoPresentationTarget = errors.New("presentation target is nil")
)
