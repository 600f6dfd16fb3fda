// Package strategy implements the five provider-selection algorithms:
// balanced, weighted, dynamic_weighted, first_available, and
// first_available_optim. Each is a ports.Chooser; construction is
// centralized in factory.go so callers never import the concrete types.
package strategy

import (
	"errors"

	"github.com/prism-gateway/llm-router/internal/core/ports"
)

// Chooser is an alias so strategy implementation files read naturally
// without importing ports directly in every signature.
type Chooser = ports.Chooser

// ErrNoProviderAvailable is returned by every strategy when no provider in
// the list can be selected; callers map it to domain.NoProviderAvailableError.
var ErrNoProviderAvailable = errors.New("strategy: no provider available")
