package prescription

import "errors"

var (
	ErrMedicationNotFound = errors.New("medication not found")
	ErrInvalidDate        = errors.New("invalid prescription date")
)
