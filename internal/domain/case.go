package domain

import "time"

// CaseStatus enumerates lifecycle states for cases.
type CaseStatus string

const (
	CaseStatusNew      CaseStatus = "new"
	CaseStatusInReview CaseStatus = "in_review"
	CaseStatusAnswered CaseStatus = "answered"
	CaseStatusResolved CaseStatus = "resolved"
	CaseStatusClosed   CaseStatus = "closed"
)

// CaseCategory classifies the reported bird's condition.
type CaseCategory string

const (
	CategoryWingInjury       CaseCategory = "wing_injury"
	CategoryLegInjury        CaseCategory = "leg_injury"
	CategoryEntangled        CaseCategory = "entangled"
	CategoryAbnormalBehavior CaseCategory = "abnormal_behavior"
	CategoryFledgling        CaseCategory = "fledgling"
	CategoryOther            CaseCategory = "other"
)

// Case is the aggregate for a citizen-submitted report.
type Case struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	Latitude    *float64
	Longitude   *float64
	Address     *string
	Status      CaseStatus
	Category    *CaseCategory
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CaseDetail is a case with its nested photos and message thread, the shape
// the citizen client consumes.
type CaseDetail struct {
	Case
	Photos   []Photo
	Messages []MessageDetail
}

var statusRank = map[CaseStatus]int{
	CaseStatusNew:      0,
	CaseStatusInReview: 1,
	CaseStatusAnswered: 2,
	CaseStatusResolved: 3,
}

// IsValidStatus reports whether s is a known case status.
func IsValidStatus(s CaseStatus) bool {
	if s == CaseStatusClosed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// IsValidCategory reports whether c is a known case category.
func IsValidCategory(c CaseCategory) bool {
	switch c {
	case CategoryWingInjury, CategoryLegInjury, CategoryEntangled,
		CategoryAbnormalBehavior, CategoryFledgling, CategoryOther:
		return true
	}
	return false
}

// CanTransition reports whether a case may move from one status to another.
// Statuses advance monotonically forward; closed is reachable from every
// state, including itself, and is absorbing. Repeating the current status is
// an idempotent no-op.
func CanTransition(from, to CaseStatus) bool {
	if !IsValidStatus(from) || !IsValidStatus(to) {
		return false
	}
	if to == CaseStatusClosed {
		return true
	}
	if from == CaseStatusClosed {
		return false
	}
	return statusRank[to] >= statusRank[from]
}
