package mover

import (
	"errors"
	"fmt"
)

// Validation failures. Nothing has been modified when one is returned.
var (
	ErrTargetExists   = errors.New("target already exists")
	ErrSelfNestedMove = errors.New("cannot move a folder within itself")
	ErrSourceMissing  = errors.New("source does not exist")
	ErrSamePath       = errors.New("source and target are the same")
)

// Phase is a step of a move.
type Phase int

const (
	PhaseValidating Phase = iota
	PhaseRewritingDependents
	PhaseRewritingSelf
	PhaseRenaming
	PhaseUpdatingGraph
	PhaseWritingIndex
)

func (p Phase) String() string {
	switch p {
	case PhaseValidating:
		return "validating"
	case PhaseRewritingDependents:
		return "rewriting dependents"
	case PhaseRewritingSelf:
		return "rewriting moved files"
	case PhaseRenaming:
		return "renaming"
	case PhaseUpdatingGraph:
		return "updating graph"
	case PhaseWritingIndex:
		return "writing index"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PhaseError is a move failure together with the phase it happened in.
type PhaseError struct {
	Phase Phase
	Path  string
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Path, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func phaseErr(phase Phase, path string, err error) error {
	return &PhaseError{Phase: phase, Path: path, Err: err}
}
