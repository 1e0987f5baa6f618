package domain

import "time"

type ProfileView struct {
	ID        string    `json:"id"`
	ViewerID  string    `json:"viewer_id"`
	ProfileID string    `json:"profile_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}

// ViewCount is one row of a view aggregation. SubjectID is the operator for
// "most viewed" and the viewer for "profile viewers".
type ViewCount struct {
	SubjectID  string    `json:"subject_id"`
	Views      int64     `json:"views"`
	LastViewed time.Time `json:"last_viewed"`
}
