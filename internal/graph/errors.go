package graph

import (
	"errors"
	"fmt"
)

var (
	ErrElementUnavailable = errors.New("element unavailable")
	ErrLinkFailure        = errors.New("link failure")
	ErrNoSinkAvailable    = errors.New("no sink available")
)

// BuildError reports why a graph could not be built. Kind is one of the
// sentinel errors above, so callers match with errors.Is.
type BuildError struct {
	Kind    error
	Role    Role
	Tier    Tier
	Factory string
	Err     error
}

func (e *BuildError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrNoSinkAvailable):
		return fmt.Sprintf("graph: %s tier: %v", e.Tier, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("graph: %s tier: %v (%s %s): %v", e.Tier, e.Kind, e.Role, e.Factory, e.Err)
	default:
		return fmt.Sprintf("graph: %s tier: %v (%s %s)", e.Tier, e.Kind, e.Role, e.Factory)
	}
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func elementUnavailable(tier Tier, role Role, factory string, err error) *BuildError {
	return &BuildError{Kind: ErrElementUnavailable, Role: role, Tier: tier, Factory: factory, Err: err}
}

func linkFailure(tier Tier, role Role, factory string, err error) *BuildError {
	return &BuildError{Kind: ErrLinkFailure, Role: role, Tier: tier, Factory: factory, Err: err}
}
