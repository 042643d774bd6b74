package model

import (
	"errors"
	"strings"
	"time"
)

// Classification is the disposal category assigned to an item.
type Classification string

// Classifications.
const (
	ClassRecyclable Classification = "Recyclable"
	ClassEWaste     Classification = "E-Waste"
	ClassWaste      Classification = "Waste"
)

// Points awarded per verified item.
const (
	PointsEWaste     int64 = 50
	PointsRecyclable int64 = 20
	PointsDefault    int64 = 5
)

// Item represents a single uploaded object going through classification and verification.
type Item struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id"`
	ImageURL             string         `json:"image_url"`
	Description          string         `json:"description,omitempty"`
	Classification       Classification `json:"classification,omitempty"`
	RecyclabilityScore   int            `json:"recyclability_score"`
	ResaleValue          float64        `json:"resale_value"`
	DisposalInstructions string         `json:"disposal_instructions"`
	IsVerified           bool           `json:"is_verified"`
	VerificationVideoURL string         `json:"verification_video_url,omitempty"`
	PointsAwarded        int64          `json:"points_awarded"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// Verification guard errors.
var (
	ErrWasteNotVerifiable = errors.New("waste items cannot be verified")
	ErrAlreadyVerified    = errors.New("item is already verified")
	ErrNotClassified      = errors.New("item has not been classified")
)

// NormalizeClassification maps free text onto one of the known classifications.
// Anything unrecognised is Waste.
func NormalizeClassification(s string) Classification {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e-waste", "ewaste":
		return ClassEWaste
	case "recyclable":
		return ClassRecyclable
	default:
		return ClassWaste
	}
}

// ParseClassification is like NormalizeClassification but keeps the empty
// value for items that were never classified.
func ParseClassification(s string) Classification {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return NormalizeClassification(s)
}

// PointsFor returns the points a verified item of class c is worth.
func PointsFor(c Classification) int64 {
	switch c {
	case ClassEWaste:
		return PointsEWaste
	case ClassRecyclable:
		return PointsRecyclable
	default:
		return PointsDefault
	}
}

// CanVerify reports whether the item may be submitted for verification.
func (i *Item) CanVerify() error {
	if i.IsVerified {
		return ErrAlreadyVerified
	}
	if i.Classification == "" {
		return ErrNotClassified
	}
	if i.Classification == ClassWaste {
		return ErrWasteNotVerifiable
	}
	return nil
}
