package server

import (
	"encoding/json"

	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/gate"
)

// Request payloads

type CreateRequisitionRequest struct {
	ID      *string `json:"id,omitempty"`
	Title   string  `json:"title"`
	DueDate *string `json:"due_date,omitempty" format:"date"`
}

type MoveRequisitionRequest struct {
	From     *string `json:"from,omitempty" enum:"requested,registered,announced,in_selection,archived"`
	To       string  `json:"to" enum:"requested,registered,announced,in_selection,archived"`
	Position int     `json:"position,omitempty"`
}

type CreateTaskRequest struct {
	ID            *string `json:"id,omitempty"`
	RequisitionID *string `json:"requisition_id,omitempty"`
	Kind          string  `json:"kind,omitempty"`
	Title         string  `json:"title"`
}

type SetTaskStatusRequest struct {
	Status string `json:"status" enum:"todo,doing,done,archived"`
}

type BriefingRequest struct {
	Role         string `json:"role,omitempty"`
	Compensation string `json:"compensation,omitempty"`
	Requirements string `json:"requirements,omitempty"`
	Headcount    int    `json:"headcount,omitempty"`
}

type CompleteTaskRequest struct {
	Briefing  *BriefingRequest `json:"briefing,omitempty"`
	Platforms []string         `json:"platforms,omitempty"`
}

type CreateJustificationRequest struct {
	Reason     string `json:"reason"`
	NewDueDate string `json:"new_due_date" format:"date"`
}

type CreateCandidateRequest struct {
	ID       *string `json:"id,omitempty"`
	Name     string  `json:"name"`
	Position int     `json:"position,omitempty"`
}

type MoveCandidateRequest struct {
	To       string `json:"to"`
	Position int    `json:"position,omitempty"`
}

type ConfirmHireRequest struct {
	Confirmed bool `json:"confirmed"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

// Response payloads

type RequisitionResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Stage      string  `json:"stage" enum:"requested,registered,announced,in_selection,archived"`
	Delayed    bool    `json:"delayed"`
	Position   int     `json:"position"`
	DueDate    *string `json:"due_date,omitempty" format:"date"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	ArchivedAt *string `json:"archived_at,omitempty" format:"date-time"`
}

type MoveResultResponse struct {
	Accepted    bool                 `json:"accepted"`
	Violation   *ViolationResponse   `json:"violation,omitempty"`
	Requisition *RequisitionResponse `json:"requisition,omitempty"`
}

type ViolationResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type TaskResponse struct {
	ID            string  `json:"id"`
	RequisitionID *string `json:"requisition_id,omitempty"`
	Kind          string  `json:"kind,omitempty"`
	Title         string  `json:"title"`
	Status        string  `json:"status" enum:"todo,doing,done,archived"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	CompletedAt   *string `json:"completed_at,omitempty" format:"date-time"`
}

type CompleteTaskResponse struct {
	Task                     TaskResponse `json:"task"`
	RequisitionEffectApplied bool         `json:"requisition_effect_applied"`
}

type BriefingResponse struct {
	RequisitionID string `json:"requisition_id"`
	Role          string `json:"role"`
	Compensation  string `json:"compensation,omitempty"`
	Requirements  string `json:"requirements,omitempty"`
	Headcount     int    `json:"headcount"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type AllocationResponse struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Platform      string `json:"platform"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type JustificationResponse struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Reason        string `json:"reason"`
	NewDueDate    string `json:"new_due_date" format:"date"`
	DaysOverdue   int    `json:"days_overdue"`
	Author        string `json:"author"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type EscalationResponse struct {
	Requisition *RequisitionResponse `json:"requisition,omitempty"`
	DaysOverdue int                  `json:"days_overdue,omitempty"`
}

type EscalationCountResponse struct {
	Pending int `json:"pending"`
}

type CandidateResponse struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Name          string `json:"name"`
	Stage         string `json:"stage"`
	Position      int    `json:"position"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type CandidateMoveResponse struct {
	Applied   bool               `json:"applied"`
	Gate      *HireGateResponse  `json:"gate,omitempty"`
	Candidate *CandidateResponse `json:"candidate,omitempty"`
}

type HireGateResponse struct {
	Phase       string `json:"phase" enum:"idle,question,success,blocked"`
	CandidateID string `json:"candidate_id,omitempty"`
	FromStage   string `json:"from_stage,omitempty"`
}

type ActivityResponse struct {
	ID            int64          `json:"id"`
	TS            string         `json:"ts" format:"date-time"`
	Action        string         `json:"action"`
	RequisitionID string         `json:"requisition_id,omitempty"`
	EntityKind    string         `json:"entity_kind"`
	EntityID      string         `json:"entity_id,omitempty"`
	ActorID       string         `json:"actor_id"`
	Payload       map[string]any `json:"payload,omitempty"`
}

type BoardColumnResponse struct {
	Stage        string                `json:"stage"`
	Requisitions []RequisitionResponse `json:"requisitions"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

func requisitionResponse(r domain.Requisition) RequisitionResponse {
	return RequisitionResponse{
		ID:         r.ID,
		Title:      r.Title,
		Stage:      r.Stage,
		Delayed:    r.Delayed,
		Position:   r.Position,
		DueDate:    r.DueDate,
		CreatedAt:  r.CreatedAt,
		ArchivedAt: r.ArchivedAt,
	}
}

func mapRequisitions(items []domain.Requisition) []RequisitionResponse {
	out := make([]RequisitionResponse, 0, len(items))
	for _, r := range items {
		out = append(out, requisitionResponse(r))
	}
	return out
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:            t.ID,
		RequisitionID: t.RequisitionID,
		Kind:          t.Kind,
		Title:         t.Title,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func briefingResponse(b domain.Briefing) BriefingResponse {
	return BriefingResponse{
		RequisitionID: b.RequisitionID,
		Role:          b.Role,
		Compensation:  b.Compensation,
		Requirements:  b.Requirements,
		Headcount:     b.Headcount,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func mapAllocations(items []domain.CampaignAllocation) []AllocationResponse {
	out := make([]AllocationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, AllocationResponse{
			ID:            a.ID,
			RequisitionID: a.RequisitionID,
			Platform:      a.Platform,
			CreatedAt:     a.CreatedAt,
		})
	}
	return out
}

func justificationResponse(j domain.Justification) JustificationResponse {
	return JustificationResponse{
		ID:            j.ID,
		RequisitionID: j.RequisitionID,
		Reason:        j.Reason,
		NewDueDate:    j.NewDueDate,
		DaysOverdue:   j.DaysOverdue,
		Author:        j.Author,
		CreatedAt:     j.CreatedAt,
	}
}

func mapJustifications(items []domain.Justification) []JustificationResponse {
	out := make([]JustificationResponse, 0, len(items))
	for _, j := range items {
		out = append(out, justificationResponse(j))
	}
	return out
}

func candidateResponse(c domain.Candidate) CandidateResponse {
	return CandidateResponse{
		ID:            c.ID,
		RequisitionID: c.RequisitionID,
		Name:          c.Name,
		Stage:         c.Stage,
		Position:      c.Position,
		CreatedAt:     c.CreatedAt,
	}
}

func mapCandidates(items []domain.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(items))
	for _, c := range items {
		out = append(out, candidateResponse(c))
	}
	return out
}

func hireGateResponse(d gate.Dialog) HireGateResponse {
	return HireGateResponse{
		Phase:       string(d.Phase),
		CandidateID: d.CandidateID,
		FromStage:   d.FromStage,
	}
}

func candidateMoveResponse(res engine.CandidateMoveResult) CandidateMoveResponse {
	out := CandidateMoveResponse{Applied: res.Applied}
	if res.Gate != nil {
		g := hireGateResponse(*res.Gate)
		out.Gate = &g
	}
	if res.Candidate.ID != "" {
		c := candidateResponse(res.Candidate)
		out.Candidate = &c
	}
	return out
}

func activityResponse(e domain.ActivityEntry) ActivityResponse {
	out := ActivityResponse{
		ID:            e.ID,
		TS:            e.TS,
		Action:        e.Action,
		RequisitionID: e.RequisitionID,
		EntityKind:    e.EntityKind,
		EntityID:      e.EntityID,
		ActorID:       e.ActorID,
	}
	if e.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil {
			out.Payload = payload
		}
	}
	return out
}

func mapActivity(items []domain.ActivityEntry) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, e := range items {
		out = append(out, activityResponse(e))
	}
	return out
}
