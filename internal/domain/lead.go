package domain

import "time"

// LeadStage enumerates the admissions lifecycle stages a lead moves through.
type LeadStage string

const (
	StageEnquiry   LeadStage = "enquiry"
	StageApplicant LeadStage = "applicant"
	StageOffer     LeadStage = "offer"
	StageEnrolled  LeadStage = "enrolled"
	StageWithdrawn LeadStage = "withdrawn"
)

// stageRank orders stages for progression checks. Withdrawn is terminal and
// never counts as an advance.
var stageRank = map[LeadStage]int{
	StageEnquiry:   1,
	StageApplicant: 2,
	StageOffer:     3,
	StageEnrolled:  4,
	StageWithdrawn: 0,
}

// Rank returns the lead stage's position in the admissions funnel.
// Unknown stages rank 0.
func (s LeadStage) Rank() int { return stageRank[s] }

// AdvancedFrom reports whether s is strictly further down the funnel than prev.
func (s LeadStage) AdvancedFrom(prev LeadStage) bool {
	return s.Rank() > prev.Rank() && prev.Rank() > 0
}

// ValueTier reflects the declared commercial/strategic value of a lead.
type ValueTier string

const (
	TierStandard  ValueTier = "standard"
	TierPriority  ValueTier = "priority"
	TierStrategic ValueTier = "strategic"
)

// Lead is the admissions lead or application record being scored. Contact
// fields, engagement counters, and completeness ratios feed the feature
// extractor; the score_* columns are write-back fields populated when the
// lead was last triaged.
type Lead struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          *string   `json:"email" db:"email"`
	Phone          *string   `json:"phone" db:"phone"`
	ConsentGiven   *bool     `json:"consent_given" db:"consent_given"`
	Source         *string   `json:"source" db:"source"`
	Programme      *string   `json:"programme" db:"programme"`
	ValueTier      ValueTier `json:"value_tier" db:"value_tier"`
	Stage          LeadStage `json:"stage" db:"stage"`

	TouchpointCount int        `json:"touchpoint_count" db:"touchpoint_count"`
	LastEngagedAt   *time.Time `json:"last_engaged_at" db:"last_engaged_at"`
	DeadlineAt      *time.Time `json:"deadline_at" db:"deadline_at"`

	DocCompleteness *float64 `json:"doc_completeness" db:"doc_completeness"`
	IDCompleteness  *float64 `json:"id_completeness" db:"id_completeness"`

	// Attributes is the typed extension map for org-specific fields that
	// don't warrant schema columns. Keys are stable strings, values are
	// JSON scalars.
	Attributes map[string]any `json:"attributes" db:"attributes"`

	// Write-back triage fields, refreshed on every scoring pass.
	Score       *float64   `json:"score" db:"score"`
	Probability *float64   `json:"probability" db:"probability"`
	Confidence  *float64   `json:"confidence" db:"confidence"`
	ScoreBand   *string    `json:"score_band" db:"score_band"`
	ScoredAt    *time.Time `json:"scored_at" db:"scored_at"`

	StageEnteredAt time.Time `json:"stage_entered_at" db:"stage_entered_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Programme holds remaining intake capacity for a course/programme. Zero
// remaining seats is a critical blocker for any lead targeting it.
type Programme struct {
	OrganizationID    string `json:"organization_id" db:"organization_id"`
	Code              string `json:"code" db:"code"`
	Name              string `json:"name" db:"name"`
	CapacityTotal     int    `json:"capacity_total" db:"capacity_total"`
	CapacityRemaining int    `json:"capacity_remaining" db:"capacity_remaining"`
}

// CapacityRatio returns remaining/total seats, floored at zero. A programme
// with no declared capacity reports zero seats remaining.
func (p Programme) CapacityRatio() float64 {
	if p.CapacityTotal <= 0 {
		return 0
	}
	ratio := float64(p.CapacityRemaining) / float64(p.CapacityTotal)
	if ratio < 0 {
		return 0
	}
	return ratio
}
