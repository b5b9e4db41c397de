package models

import (
	"encoding/json"
	"sort"
)

// RecommendationState tells whether a recommendation is filed against risks.
type RecommendationState int

const (
	Pending RecommendationState = iota
	Resolved
)

func (s RecommendationState) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "pending"
}

// Duedate is the PHP-style date object carried by recommendations.
type Duedate struct {
	Date         string `json:"date"`
	TimezoneType int    `json:"timezone_type"`
	Timezone     string `json:"timezone"`
}

// Resolution carries what a resolved recommendation adds over a pending one.
type Resolution struct {
	RelatedRisks map[int]struct{}
	CommentAfter string
}

// Recommendation is a remediation action, pending or resolved.
type Recommendation struct {
	UUID              string
	RecommandationSet string
	Code              string
	Description       string
	Importance        int
	Comment           string
	Status            int
	Responsable       string
	Duedate           *Duedate
	CounterTreated    int

	State      RecommendationState
	Resolution *Resolution
}

// Resolve turns the recommendation into a resolved one filed against riskID.
// The comment is only taken when the recommendation was not resolved yet.
func (r *Recommendation) Resolve(riskID int, commentAfter string) {
	if r.Resolution == nil {
		r.Resolution = &Resolution{RelatedRisks: make(map[int]struct{}), CommentAfter: commentAfter}
	}
	r.State = Resolved
	r.Resolution.RelatedRisks[riskID] = struct{}{}
}

// RelatedTo reports whether the recommendation is filed against riskID.
func (r *Recommendation) RelatedTo(riskID int) bool {
	if r.Resolution == nil {
		return false
	}
	_, ok := r.Resolution.RelatedRisks[riskID]
	return ok
}

// RelatedRisks returns the risk ids the recommendation is filed against, sorted.
func (r *Recommendation) RelatedRisks() []int {
	if r.Resolution == nil {
		return nil
	}
	out := make([]int, 0, len(r.Resolution.RelatedRisks))
	for id := range r.Resolution.RelatedRisks {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Clone returns a copy carrying only the base fields, in pending state.
func (r *Recommendation) Clone() *Recommendation {
	c := *r
	c.State = Pending
	c.Resolution = nil
	if r.Duedate != nil {
		d := *r.Duedate
		c.Duedate = &d
	}
	return &c
}

type recommendationJSON struct {
	UUID              string   `json:"uuid"`
	RecommandationSet string   `json:"recommandationSet"`
	Code              string   `json:"code"`
	Description       string   `json:"description"`
	Importance        int      `json:"importance"`
	Comment           string   `json:"comment"`
	Status            int      `json:"status"`
	Responsable       string   `json:"responsable"`
	Duedate           *Duedate `json:"duedate"`
	CounterTreated    int      `json:"counterTreated"`
	CommentAfter      *string  `json:"commentAfter,omitempty"`
}

// MarshalJSON writes commentAfter only for resolved recommendations.
func (r *Recommendation) MarshalJSON() ([]byte, error) {
	out := recommendationJSON{
		UUID:              r.UUID,
		RecommandationSet: r.RecommandationSet,
		Code:              r.Code,
		Description:       r.Description,
		Importance:        r.Importance,
		Comment:           r.Comment,
		Status:            r.Status,
		Responsable:       r.Responsable,
		Duedate:           r.Duedate,
		CounterTreated:    r.CounterTreated,
	}
	if r.State == Resolved && r.Resolution != nil {
		c := r.Resolution.CommentAfter
		out.CommentAfter = &c
	}
	return json.Marshal(out)
}
