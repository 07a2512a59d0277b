/*
handlers.go - HTTP API handlers for the bonus engine

PURPOSE:
  Exposes the revenue reconciliation and bonus engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Directory:
    GET    /api/branches                     List active branches
    POST   /api/branches                     Register branch
    GET    /api/branches/{id}/employees      List active employees
    POST   /api/employees                    Register employee

  Revenue:
    POST   /api/revenues                     Submit one branch-day of figures

  Bonuses:
    GET    /api/branches/{id}/bonuses        Get bonus by ?year&month&week
    GET    /api/branches/{id}/bonuses/current  Bonus for today's bucket
    GET    /api/branches/{id}/bonuses/history  History by ?year&month&status
    GET    /api/branches/{id}/statistics     Branch statistics
    GET    /api/bonuses/{id}                 Get bonus with lines
    GET    /api/bonuses/{id}/audit           Audit trail, oldest first
    POST   /api/bonuses/{id}/request         pending -> requested
    POST   /api/bonuses/{id}/approve         requested -> approved
    POST   /api/bonuses/{id}/reject          requested -> rejected
    POST   /api/bonuses/approve-bulk         Bulk approve with tallies
    POST   /api/bonuses/reject-bulk          Bulk reject with tallies

  Admin:
    GET    /api/tiers                        Current tier table
    POST   /api/admin/sync                   On-demand sync for one bucket
    POST   /api/admin/sweep                  Run the closing-day sweep now

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (aggregator, orchestrator, lifecycle)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (frozen record, invalid transition, duplicate entry)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  The actor_id fields are caller-asserted identities.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/bonus-engine/accounting"
	"github.com/warp/bonus-engine/bonus"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store bundles the persistence interfaces the API needs. Both the sqlite
// and the in-memory store satisfy it.
type Store interface {
	bonus.DirectoryStore
	bonus.RevenueStore
	bonus.BonusStore
	bonus.AuditStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        Store
	Orchestrator *bonus.Orchestrator
	Lifecycle    *bonus.Lifecycle
	Audit        *bonus.AuditLogger
	Tiers        bonus.TierTable

	// Now is the clock; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

// NewHandler wires the domain services on top of the given store.
func NewHandler(store Store, tiers bonus.TierTable, notifier bonus.Notifier, recipients []string) *Handler {
	audit := bonus.NewAuditLogger(store)
	agg := bonus.NewAggregator(store, store)
	return &Handler{
		Store:        store,
		Orchestrator: bonus.NewOrchestrator(agg, tiers, store, store, audit),
		Lifecycle:    bonus.NewLifecycle(store, audit, notifier, recipients),
		Audit:        audit,
		Tiers:        tiers,
		Now:          time.Now,
	}
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// ListBranches returns all active branches.
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.Store.ListActiveBranches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list branches", err)
		return
	}

	dtos := make([]BranchDTO, len(branches))
	for i, b := range branches {
		dtos[i] = BranchDTO{
			ID:        string(b.ID),
			Code:      b.Code,
			Name:      b.Name,
			Active:    b.Active,
			CreatedAt: b.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBranch registers a new branch.
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "id and code are required", nil)
		return
	}

	b := bonus.Branch{
		ID:        bonus.BranchID(req.ID),
		Code:      req.Code,
		Name:      req.Name,
		Active:    true,
		CreatedAt: h.Now().UTC(),
	}
	if err := h.Store.SaveBranch(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create branch", err)
		return
	}

	writeJSON(w, http.StatusCreated, BranchDTO{
		ID:     string(b.ID),
		Code:   b.Code,
		Name:   b.Name,
		Active: b.Active,
	})
}

// ListEmployees returns the active employees of a branch.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	branchID := bonus.BranchID(chi.URLParam(r, "id"))

	employees, err := h.Store.ListActiveEmployees(r.Context(), branchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID:        string(e.ID),
			BranchID:  string(e.BranchID),
			Code:      e.Code,
			Name:      e.Name,
			Active:    e.Active,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee registers a new employee under a branch.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.BranchID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "id, branch_id and code are required", nil)
		return
	}

	if _, err := h.Store.GetBranch(r.Context(), bonus.BranchID(req.BranchID)); err != nil {
		writeDomainError(w, "Unknown branch", err)
		return
	}

	e := bonus.Employee{
		ID:        bonus.EmployeeID(req.ID),
		BranchID:  bonus.BranchID(req.BranchID),
		Code:      req.Code,
		Name:      req.Name,
		Active:    true,
		CreatedAt: h.Now().UTC(),
	}
	if err := h.Store.SaveEmployee(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID:       string(e.ID),
		BranchID: string(e.BranchID),
		Code:     e.Code,
		Name:     e.Name,
		Active:   e.Active,
	})
}

// =============================================================================
// REVENUE HANDLERS
// =============================================================================

// SubmitRevenue validates and persists one branch-day of figures, then
// syncs the affected bucket so the pending bonus record tracks every
// revenue change as it lands.
func (h *Handler) SubmitRevenue(w http.ResponseWriter, r *http.Request) {
	var req SubmitRevenueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	in := accounting.EntryInput{
		BranchID:       bonus.BranchID(req.BranchID),
		Date:           date,
		MismatchReason: req.MismatchReason,
	}
	if in.Cash, err = parseMoney("cash", req.Cash); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if in.Network, err = parseMoney("network", req.Network); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if in.Total, err = parseMoney("total", req.Total); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if in.Balance, err = parseMoney("balance", req.Balance); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	for _, c := range req.Contributions {
		ci := accounting.ContributionInput{EmployeeID: bonus.EmployeeID(c.EmployeeID)}
		if ci.Cash, err = parseMoney("contribution cash", c.Cash); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if ci.Network, err = parseMoney("contribution network", c.Network); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		in.Contributions = append(in.Contributions, ci)
	}

	if _, err := h.Store.GetBranch(r.Context(), in.BranchID); err != nil {
		writeDomainError(w, "Unknown branch", err)
		return
	}

	entry, contribs, result, err := accounting.BuildEntry(in, h.Now())
	if err != nil {
		writeDomainError(w, "Entry rejected", err)
		return
	}

	if err := h.Store.SaveEntry(r.Context(), entry, contribs); err != nil {
		writeDomainError(w, "Failed to save entry", err)
		return
	}

	resp := SubmitRevenueResponse{
		EntryID:         string(entry.ID),
		Matched:         result.Matched,
		MismatchReasons: result.Reasons,
	}

	// Every saved entry re-syncs its bucket; the frozen-record and no-data
	// semantics in the orchestrator make this safe on any day.
	actor := req.SubmittedBy
	if actor == "" {
		actor = "system"
	}
	sync, err := h.Orchestrator.SyncWeeklyRevenue(r.Context(), bonus.BucketFor(in.BranchID, date), actor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Entry saved but sync failed", err)
		return
	}
	resp.Sync = toSyncResultDTO(sync)

	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// BONUS READ HANDLERS
// =============================================================================

// GetBonusByBucket returns the bonus record for ?year=&month=&week=.
func (h *Handler) GetBonusByBucket(w http.ResponseWriter, r *http.Request) {
	branchID := bonus.BranchID(chi.URLParam(r, "id"))

	year, err1 := strconv.Atoi(r.URL.Query().Get("year"))
	month, err2 := strconv.Atoi(r.URL.Query().Get("month"))
	week, err3 := strconv.Atoi(r.URL.Query().Get("week"))
	if err1 != nil || err2 != nil || err3 != nil {
		writeError(w, http.StatusBadRequest, "year, month and week query parameters are required", nil)
		return
	}

	bucket := bonus.Bucket{BranchID: branchID, Year: year, Month: time.Month(month), Week: week}
	if err := bucket.Validate(); err != nil {
		writeDomainError(w, "Invalid bucket", err)
		return
	}

	h.writeBonusWithLines(w, r, func() (*bonus.WeeklyBonusRecord, error) {
		return h.Store.GetBonusByBucket(r.Context(), bucket)
	})
}

// GetCurrentBonus returns the bonus record for the bucket of today.
func (h *Handler) GetCurrentBonus(w http.ResponseWriter, r *http.Request) {
	branchID := bonus.BranchID(chi.URLParam(r, "id"))
	bucket := bonus.BucketFor(branchID, h.Now())

	h.writeBonusWithLines(w, r, func() (*bonus.WeeklyBonusRecord, error) {
		return h.Store.GetBonusByBucket(r.Context(), bucket)
	})
}

// GetBonus returns one bonus record with its lines.
func (h *Handler) GetBonus(w http.ResponseWriter, r *http.Request) {
	id := bonus.BonusID(chi.URLParam(r, "id"))
	h.writeBonusWithLines(w, r, func() (*bonus.WeeklyBonusRecord, error) {
		return h.Store.GetBonus(r.Context(), id)
	})
}

func (h *Handler) writeBonusWithLines(w http.ResponseWriter, r *http.Request, get func() (*bonus.WeeklyBonusRecord, error)) {
	record, err := get()
	if err != nil {
		writeDomainError(w, "Failed to get bonus record", err)
		return
	}

	lines, err := h.Store.ListLines(r.Context(), record.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load bonus lines", err)
		return
	}

	dto := toBonusDTO(record)
	dto.Lines = toBonusLineDTOs(lines)
	writeJSON(w, http.StatusOK, dto)
}

// ListBonusHistory returns the branch's bonus history, newest bucket first.
// Optional filters: ?year=&month=&status=.
func (h *Handler) ListBonusHistory(w http.ResponseWriter, r *http.Request) {
	filter := bonus.HistoryFilter{
		BranchID: bonus.BranchID(chi.URLParam(r, "id")),
		Status:   bonus.BonusStatus(r.URL.Query().Get("status")),
	}
	if y := r.URL.Query().Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		filter.Year = year
	}
	if m := r.URL.Query().Get("month"); m != "" {
		month, err := strconv.Atoi(m)
		if err != nil || month < 1 || month > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		filter.Month = time.Month(month)
	}

	records, err := h.Store.ListBonuses(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bonus history", err)
		return
	}

	dtos := make([]BonusDTO, len(records))
	for i := range records {
		dtos[i] = toBonusDTO(&records[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"bonuses": dtos})
}

// GetStatistics returns aggregate figures for one branch.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	branchID := bonus.BranchID(chi.URLParam(r, "id"))

	stats, err := h.Store.GetStatistics(r.Context(), branchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get statistics", err)
		return
	}

	writeJSON(w, http.StatusOK, StatisticsDTO{
		TotalRecords:       stats.TotalRecords,
		TotalPaid:          stats.TotalPaid.String(),
		AveragePerEmployee: stats.AveragePerEmployee.String(),
		ApprovalRate:       stats.ApprovalRate.String(),
		PendingCount:       stats.PendingCount,
	})
}

// GetAuditTrail returns a bonus record's audit entries, oldest first.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := bonus.BonusID(chi.URLParam(r, "id"))

	// 404 for unknown ids; the audit store itself never errors on them.
	if _, err := h.Store.GetBonus(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get bonus record", err)
		return
	}

	entries, err := h.Audit.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load audit trail", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:        e.ID,
			BonusID:   string(e.BonusID),
			Action:    string(e.Action),
			ActorID:   e.ActorID,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": dtos})
}

// =============================================================================
// LIFECYCLE HANDLERS
// =============================================================================

// RequestBonus moves a pending record to requested.
func (h *Handler) RequestBonus(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id bonus.BonusID, actor string) (*bonus.WeeklyBonusRecord, error) {
		return h.Lifecycle.Request(r.Context(), id, actor)
	})
}

// ApproveBonus moves a requested record to approved.
func (h *Handler) ApproveBonus(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id bonus.BonusID, actor string) (*bonus.WeeklyBonusRecord, error) {
		return h.Lifecycle.Approve(r.Context(), id, actor)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(bonus.BonusID, string) (*bonus.WeeklyBonusRecord, error)) {
	id := bonus.BonusID(chi.URLParam(r, "id"))

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	record, err := apply(id, req.ActorID)
	if err != nil {
		writeDomainError(w, "Transition failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBonusDTO(record))
}

// RejectBonus moves a requested record to rejected. The reason is mandatory.
func (h *Handler) RejectBonus(w http.ResponseWriter, r *http.Request) {
	id := bonus.BonusID(chi.URLParam(r, "id"))

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	record, err := h.Lifecycle.Reject(r.Context(), id, req.ActorID, req.Reason)
	if err != nil {
		writeDomainError(w, "Rejection failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toBonusDTO(record))
}

// ApproveBulk approves every requested record in the list, tallying failures.
func (h *Handler) ApproveBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	result := h.Lifecycle.ApproveAll(r.Context(), toBonusIDs(req.IDs), req.ActorID)
	writeJSON(w, http.StatusOK, toBulkResultDTO(result))
}

// RejectBulk rejects every requested record in the list, tallying failures.
func (h *Handler) RejectBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required for rejection", nil)
		return
	}

	result := h.Lifecycle.RejectAll(r.Context(), toBonusIDs(req.IDs), req.ActorID, req.Reason)
	writeJSON(w, http.StatusOK, toBulkResultDTO(result))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListTiers returns the configured tier table.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	bands := h.Tiers.Bands()
	dtos := make([]TierBandDTO, len(bands))
	for i, b := range bands {
		dtos[i] = TierBandDTO{
			Tier:      string(b.Tier),
			Threshold: b.Threshold.String(),
			Bonus:     b.Amount.String(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": dtos})
}

// TriggerSync runs an on-demand sync for one bucket.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bucket := bonus.Bucket{
		BranchID: bonus.BranchID(req.BranchID),
		Year:     req.Year,
		Month:    time.Month(req.Month),
		Week:     req.Week,
	}
	actor := req.ActorID
	if actor == "" {
		actor = "system"
	}

	result, err := h.Orchestrator.SyncWeeklyRevenue(r.Context(), bucket, actor)
	if err != nil {
		writeDomainError(w, "Sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncResultDTO(result))
}

// TriggerSweep runs the all-branches closing-day sweep immediately.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Orchestrator.Sweep(r.Context(), h.Now(), "system")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Sweep failed", err)
		return
	}

	dto := SweepResultDTO{
		RanAt:     result.RanAt.Format(time.RFC3339),
		Attempted: result.Attempted,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Results:   make([]SyncResultDTO, len(result.Results)),
	}
	for i := range result.Results {
		dto.Results[i] = *toSyncResultDTO(&result.Results[i])
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error classes onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case bonus.IsNotFound(err):
		status = http.StatusNotFound
	case bonus.IsConflict(err):
		status = http.StatusConflict
	case bonus.IsClientError(err) || bonus.IsNoData(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}

func parseMoney(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s is not a valid decimal: %q", field, s)
	}
	return d, nil
}

func toBonusIDs(ids []string) []bonus.BonusID {
	out := make([]bonus.BonusID, len(ids))
	for i, id := range ids {
		out[i] = bonus.BonusID(id)
	}
	return out
}
