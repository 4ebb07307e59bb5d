package domain

type Requisition struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Stage      string  `json:"stage" enum:"requested,registered,announced,in_selection,archived"`
	Delayed    bool    `json:"delayed"`
	Position   int     `json:"position"`
	DueDate    *string `json:"due_date,omitempty" format:"date"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	ArchivedAt *string `json:"archived_at,omitempty" format:"date-time"`
}

type Briefing struct {
	RequisitionID string `json:"requisition_id"`
	Role          string `json:"role"`
	Compensation  string `json:"compensation,omitempty"`
	Requirements  string `json:"requirements,omitempty"`
	Headcount     int    `json:"headcount"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID            string  `json:"id"`
	RequisitionID *string `json:"requisition_id,omitempty"`
	Kind          string  `json:"kind,omitempty"`
	Title         string  `json:"title"`
	Status        string  `json:"status" enum:"todo,doing,done,archived"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	CompletedAt   *string `json:"completed_at,omitempty" format:"date-time"`
}

type Justification struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Reason        string `json:"reason"`
	NewDueDate    string `json:"new_due_date" format:"date"`
	DaysOverdue   int    `json:"days_overdue"`
	Author        string `json:"author"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type Candidate struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Name          string `json:"name"`
	Stage         string `json:"stage"`
	Position      int    `json:"position"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type ActivityEntry struct {
	ID            int64  `json:"id"`
	TS            string `json:"ts" format:"date-time"`
	Action        string `json:"action"`
	RequisitionID string `json:"requisition_id,omitempty"`
	EntityKind    string `json:"entity_kind"`
	EntityID      string `json:"entity_id,omitempty"`
	ActorID       string `json:"actor_id"`
	Payload       string `json:"payload_json"`
}

// CampaignAllocation records one publication slot reserved on a job platform
// when a requisition is registered.
type CampaignAllocation struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Platform      string `json:"platform"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}
