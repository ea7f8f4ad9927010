package result

// Score is a fraction of points awarded
type Score struct {
	Numerator   float64 `json:"numerator"`
	Denominator float64 `json:"denominator"`
}

// NewScore creates a score of n out of d
func NewScore(n, d float64) *Score {
	return &Score{Numerator: n, Denominator: d}
}

// Value returns the ratio, zero when the denominator is zero
func (s Score) Value() float64 {
	if s.Denominator == 0 {
		return 0
	}
	return s.Numerator / s.Denominator
}
