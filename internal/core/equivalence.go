package core

// Equivalence expresses a spend total in badges and itabags.
type Equivalence struct {
	Badge  float64
	Itabag float64
}

// Convert divides total by each price. A non-positive price yields 0 for
// that metric rather than an error. No rounding is applied.
func Convert(total, badgePrice, itabagTotalPrice int64) Equivalence {
	var eq Equivalence
	if badgePrice > 0 {
		eq.Badge = float64(total) / float64(badgePrice)
	}
	if itabagTotalPrice > 0 {
		eq.Itabag = float64(total) / float64(itabagTotalPrice)
	}
	return eq
}
