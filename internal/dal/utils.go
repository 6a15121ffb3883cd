package dal

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// clampLimit maps a requested page size onto 1..MaxListLimit.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
