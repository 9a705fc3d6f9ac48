package models

// DimensionScore is one scored rubric criterion after clamping and
// normalization. Weight is the criterion's share after any renormalization
// over missing siblings.
type DimensionScore struct {
	Criterion       string  `json:"criterion"`
	Weight          float64 `json:"weight"`
	RawValue        float64 `json:"raw_value"`
	MinValue        float64 `json:"min_value"`
	MaxValue        float64 `json:"max_value"`
	NormalizedValue float64 `json:"normalized_value"`
	Missing         bool    `json:"missing,omitempty"`
	MissingReason   string  `json:"missing_reason,omitempty"`
}

// Clamp bounds v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// NormalizeGrade maps a raw grade on [min, max] onto [0, 100], clamping
// first. On the 1-5 judge scale: 1 maps to 0, 3 to 50, 5 to 100.
func NormalizeGrade(raw, min, max float64) float64 {
	if max <= min {
		return 0
	}
	raw = Clamp(raw, min, max)
	return (raw - min) / (max - min) * 100
}

// NewDimensionScore builds a scored dimension, clamping raw to the grade
// bounds before normalization.
func NewDimensionScore(criterion string, weight, raw, min, max float64) DimensionScore {
	clamped := Clamp(raw, min, max)
	return DimensionScore{
		Criterion:       criterion,
		Weight:          weight,
		RawValue:        clamped,
		MinValue:        min,
		MaxValue:        max,
		NormalizedValue: NormalizeGrade(clamped, min, max),
	}
}

// MissingDimensionScore builds a placeholder for a criterion that could not
// be extracted; it is excluded from weighting.
func MissingDimensionScore(criterion, reason string) DimensionScore {
	return DimensionScore{
		Criterion:     criterion,
		Missing:       true,
		MissingReason: reason,
	}
}
