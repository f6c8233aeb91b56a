package detection

// Filter forwards only detections of the target class with confidence strictly above the threshold
type Filter struct {
	MinConfidence float64
	// Target class. Empty string accepts every class
	Class string
}

// DefaultFilter keeps people detected with confidence above 0.5
func DefaultFilter() Filter {
	return Filter{
		MinConfidence: 0.5,
		Class:         "person",
	}
}

// Apply returns detections passing the filter. Order is preserved.
func (f Filter) Apply(detections []Detection) []Detection {
	filtered := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Confidence <= f.MinConfidence {
			continue
		}
		if f.Class != "" && d.Class != f.Class {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered
}
