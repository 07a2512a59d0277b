/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All monetary fields cross the wire as decimal strings ("123.45"), never
  as JSON numbers. Clients must not parse them into binary floats.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/tiers.go: TierTableJSON type
*/
package api

import (
	"time"

	"github.com/warp/bonus-engine/bonus"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// BranchDTO represents a branch in API responses.
type BranchDTO struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateBranchRequest is the request to register a branch.
type CreateBranchRequest struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	BranchID  string `json:"branch_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to register an employee.
type CreateEmployeeRequest struct {
	ID       string `json:"id"`
	BranchID string `json:"branch_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
}

// ContributionRequest is one employee's share of a submitted day.
type ContributionRequest struct {
	EmployeeID string `json:"employee_id"`
	Cash       string `json:"cash"`
	Network    string `json:"network"`
}

// SubmitRevenueRequest is one branch-day of figures. Total and balance come
// from the submitting system and are re-checked server-side.
type SubmitRevenueRequest struct {
	BranchID      string                `json:"branch_id"`
	Date          string                `json:"date"` // YYYY-MM-DD
	Cash          string                `json:"cash"`
	Network       string                `json:"network"`
	Total         string                `json:"total"`
	Balance       string                `json:"balance"`
	Contributions []ContributionRequest `json:"contributions"`

	// Required when the accounting identities do not hold.
	MismatchReason string `json:"mismatch_reason,omitempty"`
	SubmittedBy    string `json:"submitted_by,omitempty"`
}

// SubmitRevenueResponse reports the persisted entry and the bucket sync
// it triggered.
type SubmitRevenueResponse struct {
	EntryID         string         `json:"entry_id"`
	Matched         bool           `json:"matched"`
	MismatchReasons []string       `json:"mismatch_reasons,omitempty"`
	Sync            *SyncResultDTO `json:"sync,omitempty"`
}

// BonusDTO represents a weekly bonus record.
type BonusDTO struct {
	ID            string `json:"id"`
	BranchID      string `json:"branch_id"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	Week          int    `json:"week"`
	TotalAmount   string `json:"total_amount"`
	EmployeeCount int    `json:"employee_count"`
	EligibleCount int    `json:"eligible_count"`
	Status        string `json:"status"`

	RequestedBy     string `json:"requested_by,omitempty"`
	RequestedAt     string `json:"requested_at,omitempty"`
	ApprovedBy      string `json:"approved_by,omitempty"`
	ApprovedAt      string `json:"approved_at,omitempty"`
	RejectedBy      string `json:"rejected_by,omitempty"`
	RejectedAt      string `json:"rejected_at,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`

	Lines []BonusLineDTO `json:"lines,omitempty"`
}

// BonusLineDTO represents one employee's share of a bonus record.
type BonusLineDTO struct {
	EmployeeID    string `json:"employee_id"`
	EmployeeCode  string `json:"employee_code"`
	EmployeeName  string `json:"employee_name"`
	WeeklyRevenue string `json:"weekly_revenue"`
	Tier          string `json:"tier"`
	Amount        string `json:"amount"`
	Eligible      bool   `json:"eligible"`
}

// TransitionRequest carries the actor for request/approve calls.
type TransitionRequest struct {
	ActorID string `json:"actor_id"`
}

// RejectRequest carries the actor and the mandatory reason.
type RejectRequest struct {
	ActorID string `json:"actor_id"`
	Reason  string `json:"reason"`
}

// BulkTransitionRequest carries ids for approve-bulk / reject-bulk.
type BulkTransitionRequest struct {
	IDs     []string `json:"ids"`
	ActorID string   `json:"actor_id"`
	Reason  string   `json:"reason,omitempty"` // reject-bulk only
}

// BulkResultDTO tallies a bulk operation, one failure row per skipped id.
type BulkResultDTO struct {
	Attempted int              `json:"attempted"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Failures  []BulkFailureDTO `json:"failures,omitempty"`
}

// BulkFailureDTO names one id a bulk operation skipped and why.
type BulkFailureDTO struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// SyncRequest targets one bucket for an on-demand sync.
type SyncRequest struct {
	BranchID string `json:"branch_id"`
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Week     int    `json:"week"`
	ActorID  string `json:"actor_id,omitempty"`
}

// SyncResultDTO reports one bucket sync outcome.
type SyncResultDTO struct {
	Bucket        string `json:"bucket"`
	Synced        bool   `json:"synced"`
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
	BonusID       string `json:"bonus_id,omitempty"`
	TotalAmount   string `json:"total_amount,omitempty"`
	EmployeeCount int    `json:"employee_count,omitempty"`
	EligibleCount int    `json:"eligible_count,omitempty"`
}

// SweepResultDTO reports one all-branches sweep.
type SweepResultDTO struct {
	RanAt     string          `json:"ran_at"`
	Attempted int             `json:"attempted"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []SyncResultDTO `json:"results"`
}

// AuditEntryDTO represents one row of a bonus record's audit trail.
type AuditEntryDTO struct {
	ID        string         `json:"id"`
	BonusID   string         `json:"bonus_id"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actor_id"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// StatisticsDTO summarizes a branch's bonus history.
type StatisticsDTO struct {
	TotalRecords       int    `json:"total_records"`
	TotalPaid          string `json:"total_paid"`
	AveragePerEmployee string `json:"average_per_employee"`
	ApprovalRate       string `json:"approval_rate"`
	PendingCount       int    `json:"pending_count"`
}

// TierBandDTO represents one configured tier band.
type TierBandDTO struct {
	Tier      string `json:"tier"`
	Threshold string `json:"threshold"`
	Bonus     string `json:"bonus"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBonusDTO(r *bonus.WeeklyBonusRecord) BonusDTO {
	dto := BonusDTO{
		ID:              string(r.ID),
		BranchID:        string(r.Bucket.BranchID),
		Year:            r.Bucket.Year,
		Month:           int(r.Bucket.Month),
		Week:            r.Bucket.Week,
		TotalAmount:     r.TotalAmount.String(),
		EmployeeCount:   r.EmployeeCount,
		EligibleCount:   r.EligibleCount,
		Status:          string(r.Status),
		RequestedBy:     r.RequestedBy,
		ApprovedBy:      r.ApprovedBy,
		RejectedBy:      r.RejectedBy,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
	if r.RequestedAt != nil {
		dto.RequestedAt = r.RequestedAt.Format(time.RFC3339)
	}
	if r.ApprovedAt != nil {
		dto.ApprovedAt = r.ApprovedAt.Format(time.RFC3339)
	}
	if r.RejectedAt != nil {
		dto.RejectedAt = r.RejectedAt.Format(time.RFC3339)
	}
	return dto
}

func toBonusLineDTOs(lines []bonus.EmployeeBonusLine) []BonusLineDTO {
	dtos := make([]BonusLineDTO, len(lines))
	for i, l := range lines {
		dtos[i] = BonusLineDTO{
			EmployeeID:    string(l.EmployeeID),
			EmployeeCode:  l.EmployeeCode,
			EmployeeName:  l.EmployeeName,
			WeeklyRevenue: l.WeeklyRevenue.String(),
			Tier:          string(l.Tier),
			Amount:        l.Amount.String(),
			Eligible:      l.Eligible,
		}
	}
	return dtos
}

func toSyncResultDTO(res *bonus.SyncResult) *SyncResultDTO {
	dto := &SyncResultDTO{
		Bucket:        res.Bucket.String(),
		Synced:        res.Synced,
		Reason:        res.Reason,
		BonusID:       string(res.BonusID),
		EmployeeCount: res.EmployeeCount,
		EligibleCount: res.EligibleCount,
	}
	if res.Err != nil {
		dto.Error = res.Err.Error()
	}
	if res.Synced {
		dto.TotalAmount = res.TotalAmount.String()
	}
	return dto
}

func toBulkResultDTO(res *bonus.BulkResult) BulkResultDTO {
	dto := BulkResultDTO{
		Attempted: res.Attempted,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	}
	for _, f := range res.Failures {
		dto.Failures = append(dto.Failures, BulkFailureDTO{
			ID:     string(f.BonusID),
			Reason: f.Reason,
		})
	}
	return dto
}
