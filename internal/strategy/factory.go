package strategy

import (
	"fmt"
	"time"

	"github.com/prism-gateway/llm-router/internal/store/coordination"
)

// Name is the catalog-facing identifier for one selection strategy.
type Name string

const (
	NameBalanced            Name = "balanced"
	NameWeighted            Name = "weighted"
	NameDynamicWeighted     Name = "dynamic_weighted"
	NameFirstAvailable      Name = "first_available"
	NameFirstAvailableOptim Name = "first_available_optim"
)

// ErrUnknownStrategy is returned by New for an unrecognized strategy name.
type ErrUnknownStrategy struct {
	Name Name
}

func (e *ErrUnknownStrategy) Error() string {
	return fmt.Sprintf("unknown selection strategy %q", e.Name)
}

// New constructs the named strategy. store and requestTimeout are only used
// by the store-backed strategies (first_available, first_available_optim);
// balanced/weighted/dynamic_weighted ignore them entirely, per §4.4's
// requirement that they keep working when the store is unreachable.
func New(name Name, store coordination.Store, requestTimeout time.Duration) (Chooser, error) {
	switch name {
	case NameBalanced:
		return NewBalanced(), nil
	case NameWeighted:
		return NewWeighted(), nil
	case NameDynamicWeighted:
		return NewDynamicWeighted(), nil
	case NameFirstAvailable:
		return NewFirstAvailable(store, requestTimeout), nil
	case NameFirstAvailableOptim:
		return NewFirstAvailableOptim(store, requestTimeout), nil
	default:
		return nil, &ErrUnknownStrategy{Name: name}
	}
}
