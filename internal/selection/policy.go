// Package selection classifies each date's cross-section into long and
// short candidates.
package selection

import (
	"github.com/wonny/equitysim/internal/contracts"
)

// Policy turns one cross-section into ordered long and short candidates.
// Implementations see only the observations of the current date.
type Policy interface {
	Name() string
	Candidates(cs contracts.CrossSection) (longs, shorts []string)
}
