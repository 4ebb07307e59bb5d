package hirelinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Hireline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Requisition represents the API requisition model.
type Requisition struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Stage    string  `json:"stage"`
	Position int     `json:"position"`
	DueDate  *string `json:"due_date,omitempty"`
	Delayed  bool    `json:"delayed"`
}

// Task represents the API task model.
type Task struct {
	ID            string  `json:"id"`
	RequisitionID *string `json:"requisition_id,omitempty"`
	Title         string  `json:"title"`
	Kind          string  `json:"kind"`
	Status        string  `json:"status"`
}

// MoveResult reports whether a stage move was applied or refused.
type MoveResult struct {
	Accepted    bool         `json:"accepted"`
	Violation   *Violation   `json:"violation,omitempty"`
	Requisition *Requisition `json:"requisition,omitempty"`
}

// Violation explains a refused move.
type Violation struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// CompleteTaskResult reports a completion plus any stage side effect.
type CompleteTaskResult struct {
	Task                     Task `json:"task"`
	RequisitionEffectApplied bool `json:"requisition_effect_applied"`
}

// Escalation is the single surfaced overdue requisition, if any.
type Escalation struct {
	Requisition *Requisition `json:"requisition,omitempty"`
	DaysOverdue int          `json:"days_overdue,omitempty"`
}

// Justification records why a delayed requisition slipped.
type Justification struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Reason        string `json:"reason"`
	NewDueDate    string `json:"new_due_date"`
	DaysOverdue   int    `json:"days_overdue"`
	ActorID       string `json:"actor_id"`
	CreatedAt     string `json:"created_at"`
}

// Candidate represents the API candidate model.
type Candidate struct {
	ID            string `json:"id"`
	RequisitionID string `json:"requisition_id"`
	Name          string `json:"name"`
	Stage         string `json:"stage"`
	Position      int    `json:"position"`
}

// HireGate is the confirmation dialog state for a pending hire.
type HireGate struct {
	Phase       string `json:"phase"`
	CandidateID string `json:"candidate_id,omitempty"`
	FromStage   string `json:"from_stage,omitempty"`
}

// CandidateMove reports a candidate move attempt.
type CandidateMove struct {
	Applied   bool      `json:"applied"`
	Candidate Candidate `json:"candidate"`
	Gate      *HireGate `json:"gate,omitempty"`
}

// Activity represents a log entry.
type Activity struct {
	ID            int64          `json:"id"`
	TS            string         `json:"ts"`
	Action        string         `json:"action"`
	EntityKind    string         `json:"entity_kind"`
	EntityID      string         `json:"entity_id"`
	RequisitionID string         `json:"requisition_id,omitempty"`
	ActorID       string         `json:"actor_id"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateRequisition creates a requisition in the requested stage.
func (c *Client) CreateRequisition(ctx context.Context, title, dueDate string) (Requisition, error) {
	body := map[string]any{"title": title}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp Requisition
	err := c.do(ctx, http.MethodPost, "requisitions", body, &resp)
	return resp, err
}

// GetRequisition fetches a requisition by id.
func (c *Client) GetRequisition(ctx context.Context, id string) (Requisition, error) {
	var resp Requisition
	err := c.do(ctx, http.MethodGet, "requisitions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListRequisitions returns requisitions, optionally filtered by stage.
func (c *Client) ListRequisitions(ctx context.Context, stage string) ([]Requisition, error) {
	endpoint := "requisitions"
	if stage != "" {
		endpoint += "?stage=" + url.QueryEscape(stage)
	}
	var resp []Requisition
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MoveRequisition attempts a manual stage move. Refusals come back in the
// result, not as an error.
func (c *Client) MoveRequisition(ctx context.Context, id, to string, position int) (MoveResult, error) {
	body := map[string]any{"to": to, "position": position}
	var resp MoveResult
	err := c.do(ctx, http.MethodPost, "requisitions/"+url.PathEscape(id)+"/move", body, &resp)
	return resp, err
}

// DeleteRequisition removes a requisition without open tasks.
func (c *Client) DeleteRequisition(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "requisitions/"+url.PathEscape(id), nil, nil)
}

// CreateTask creates a task, optionally linked to a requisition.
func (c *Client) CreateTask(ctx context.Context, title, kind, requisitionID string) (Task, error) {
	body := map[string]any{"title": title}
	if kind != "" {
		body["kind"] = kind
	}
	if requisitionID != "" {
		body["requisition_id"] = requisitionID
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// CompleteTaskOptions carry the registration details honored by
// register-requisition tasks.
type CompleteTaskOptions struct {
	Briefing  map[string]any
	Platforms []string
}

// CompleteTask finishes a task and reports any requisition side effect.
func (c *Client) CompleteTask(ctx context.Context, taskID string, opts *CompleteTaskOptions) (CompleteTaskResult, error) {
	body := map[string]any{}
	if opts != nil {
		if opts.Briefing != nil {
			body["briefing"] = opts.Briefing
		}
		if len(opts.Platforms) > 0 {
			body["platforms"] = opts.Platforms
		}
	}
	var resp CompleteTaskResult
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(taskID)+"/complete", body, &resp)
	return resp, err
}

// CurrentEscalation returns the surfaced overdue requisition, if any.
func (c *Client) CurrentEscalation(ctx context.Context) (Escalation, error) {
	var resp Escalation
	err := c.do(ctx, http.MethodGet, "escalations/current", nil, &resp)
	return resp, err
}

// DismissEscalation acknowledges the surfaced notification. The requisition
// stays flagged until it is justified.
func (c *Client) DismissEscalation(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "escalations/dismiss", nil, nil)
}

// Justify clears a delay with a reason and a new due date.
func (c *Client) Justify(ctx context.Context, requisitionID, reason, newDueDate string) (Justification, error) {
	body := map[string]any{"reason": reason, "new_due_date": newDueDate}
	var resp Justification
	endpoint := "requisitions/" + url.PathEscape(requisitionID) + "/justifications"
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AddCandidate attaches a candidate to a requisition.
func (c *Client) AddCandidate(ctx context.Context, requisitionID, name string) (Candidate, error) {
	body := map[string]any{"name": name}
	endpoint := "requisitions/" + url.PathEscape(requisitionID) + "/candidates"
	var resp Candidate
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// MoveCandidate attempts a candidate stage move. A move into hired opens a
// confirmation gate instead of applying; answer it with ConfirmHire.
func (c *Client) MoveCandidate(ctx context.Context, id, to string, position int) (CandidateMove, error) {
	body := map[string]any{"to": to, "position": position}
	var resp CandidateMove
	err := c.do(ctx, http.MethodPost, "candidates/"+url.PathEscape(id)+"/move", body, &resp)
	return resp, err
}

// ConfirmHire answers an open hire confirmation.
func (c *Client) ConfirmHire(ctx context.Context, candidateID string, confirmed bool) (HireGate, error) {
	body := map[string]any{"confirmed": confirmed}
	var resp HireGate
	err := c.do(ctx, http.MethodPost, "candidates/"+url.PathEscape(candidateID)+"/confirm-hire", body, &resp)
	return resp, err
}

// Activity returns recent activity log entries.
func (c *Client) Activity(ctx context.Context, limit int) ([]Activity, error) {
	endpoint := "activity"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
