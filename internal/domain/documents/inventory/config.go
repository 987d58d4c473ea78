package inventory

import "time"

// Settings are the workflow options read from configuration.
type Settings struct {
	// AutoLot makes the system assign lot codes instead of the operator.
	AutoLot bool
	// LotWithCost asks for a unit cost whenever a lot is assigned.
	LotWithCost bool
	// ReferencePrefix is used when a new session is saved without a reference.
	ReferencePrefix string
	// RowRule is an optional CEL expression every row must satisfy at validate.
	RowRule string
	// EditTTL evicts idle edit contexts.
	EditTTL time.Duration
}

// DefaultSettings returns the settings used when configuration is silent.
func DefaultSettings() Settings {
	return Settings{
		LotWithCost:     true,
		ReferencePrefix: "INV",
		EditTTL:         30 * time.Minute,
	}
}

// maxCostAttempts bounds re-prompting on invalid cost input.
const maxCostAttempts = 5
