package prescription

import (
	"fmt"
	"strconv"
	"strings"
)

// WarningCode classifies a non-blocking medication warning.
type WarningCode string

const (
	WarnMissingDosage     WarningCode = "missing_dosage"
	WarnMissingQuantity   WarningCode = "missing_quantity"
	WarnExcessiveQuantity WarningCode = "excessive_quantity"
)

// quantityLimits are the per-unit quantities above which a line is flagged.
var quantityLimits = map[Unit]float64{
	UnitBox:      6,
	UnitBottle:   4,
	UnitTube:     4,
	UnitTablet:   90,
	UnitCapsule:  90,
	UnitAmpoule:  30,
	UnitSachet:   60,
	UnitPiece:    100,
	UnitMilliter: 1000,
}

// Warning is rendered as an inline icon next to a medication line.
type Warning struct {
	MedicationID string      `json:"medicationId"`
	Index        int         `json:"index"`
	Code         WarningCode `json:"code"`
	Message      string      `json:"message"`
}

// QuantityLimit returns the excessive-quantity threshold for u.
func QuantityLimit(u Unit) (float64, bool) {
	limit, ok := quantityLimits[u]
	return limit, ok
}

// Validate returns every warning for the medication list. Index is 1-based.
func Validate(s *State) []Warning {
	var warnings []Warning
	for i, m := range s.Medications {
		add := func(code WarningCode, msg string) {
			warnings = append(warnings, Warning{MedicationID: m.ID, Index: i + 1, Code: code, Message: msg})
		}

		if strings.TrimSpace(m.Dosage) == "" {
			add(WarnMissingDosage, "Dosagem não informada")
		}

		qty := strings.TrimSpace(m.Quantity)
		if qty == "" {
			add(WarnMissingQuantity, "Quantidade não informada")
			continue
		}

		n, err := strconv.ParseFloat(strings.ReplaceAll(qty, ",", "."), 64)
		if err != nil {
			continue
		}
		if limit, ok := quantityLimits[m.Unit]; ok && n > limit {
			add(WarnExcessiveQuantity, fmt.Sprintf("Quantidade elevada para %s (máx. sugerido %g)", m.Unit, limit))
		}
	}
	return warnings
}
