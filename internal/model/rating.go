package model

import "github.com/rotisserie/eris"

// Rating labels shown in the guide.
const (
	RatingSkip        = "Skip"
	RatingWorthTrying = "Worth Trying"
	RatingMustTry     = "Must Try"
	RatingUnrated     = "Unrated"
)

// ValidateRating accepts nil or an integer in {0,1,2,3}.
func ValidateRating(r *int) error {
	if r == nil {
		return nil
	}
	if *r < 0 || *r > 3 {
		return eris.Errorf("model: rating %d outside 0..3", *r)
	}
	return nil
}

// RatingLabel maps a rating to its display label.
func RatingLabel(r *int) string {
	if r == nil {
		return RatingUnrated
	}
	switch *r {
	case 0, 1:
		return RatingSkip
	case 2:
		return RatingWorthTrying
	case 3:
		return RatingMustTry
	default:
		return RatingUnrated
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// EqualRating compares two nullable ratings by value.
func EqualRating(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
