package content

// LossClass represents the fidelity of a markup round trip.
type LossClass string

// Loss class constants, from most to least fidelity.
const (
	// LossL0 indicates byte-for-byte round trip: serialize(parse(m)) == m.
	LossL0 LossClass = "L0"

	// LossL1 indicates the markup changed but the tree did not: re-parsing
	// the serializer's output yields an equal tree.
	LossL1 LossClass = "L1"

	// LossL2 indicates content outside the supported grammar was dropped or
	// rewritten (unknown tags, attributes, empty blocks).
	LossL2 LossClass = "L2"
)

var validLossClasses = map[LossClass]bool{
	LossL0: true,
	LossL1: true,
	LossL2: true,
}

// IsValid returns true if the loss class is valid.
func (l LossClass) IsValid() bool {
	return validLossClasses[l]
}

// Level returns the numeric level (0-2) of the loss class, or -1.
func (l LossClass) Level() int {
	switch l {
	case LossL0:
		return 0
	case LossL1:
		return 1
	case LossL2:
		return 2
	default:
		return -1
	}
}

// IsLossless returns true if this loss class indicates no change at all.
func (l LossClass) IsLossless() bool {
	return l == LossL0
}

// Description returns a short human-readable explanation.
func (l LossClass) Description() string {
	switch l {
	case LossL0:
		return "canonical: markup round-trips byte for byte"
	case LossL1:
		return "normalized: markup changes, tree is stable"
	case LossL2:
		return "lossy: unsupported markup was dropped"
	default:
		return "unknown"
	}
}

// LossReport documents the fidelity of a round trip.
type LossReport struct {
	LossClass LossClass `json:"loss_class"`
	Input     string    `json:"input"`
	Canonical string    `json:"canonical"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// HasLoss returns true if the markup did not survive unchanged.
func (r *LossReport) HasLoss() bool {
	return r.LossClass.Level() > 0
}

// AddWarning adds a warning to the report.
func (r *LossReport) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}
