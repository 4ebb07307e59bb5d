package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/engine"
	"hireline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

var actorHeader = map[string]string{"X-Actor-Id": "tester"}

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestRequisitionLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions", map[string]any{
		"title": "Backend engineer",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var created RequisitionResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal requisition: %v", err)
	}
	if created.Stage != "requested" {
		t.Fatalf("expected requested, got %s", created.Stage)
	}

	// dragging into a task-gated column is refused with accepted=false
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions/"+created.ID+"/move", map[string]any{
		"to": "registered",
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("move status %d: %s", res.StatusCode, string(data))
	}
	var moved MoveResultResponse
	_ = json.Unmarshal(data, &moved)
	if moved.Accepted || moved.Violation == nil {
		t.Fatalf("expected rejected move, got %s", string(data))
	}

	// the task path is what registers it
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"requisition_id": created.ID,
		"kind":           "register-requisition",
		"title":          "Register requisition",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var task TaskResponse
	_ = json.Unmarshal(data, &task)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/complete", map[string]any{
		"briefing": map[string]any{"role": "Backend engineer", "headcount": 1},
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}
	var completed CompleteTaskResponse
	_ = json.Unmarshal(data, &completed)
	if !completed.RequisitionEffectApplied {
		t.Fatalf("expected requisition effect: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requisitions/"+created.ID, nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}
	var fetched RequisitionResponse
	_ = json.Unmarshal(data, &fetched)
	if fetched.Stage != "registered" {
		t.Fatalf("expected registered, got %s", fetched.Stage)
	}
}

func TestUnknownRequisitionIs404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/requisitions/ghost/move", map[string]any{
		"to": "archived",
	}, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "dangling_reference" {
		t.Fatalf("expected dangling_reference, got %s", string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/requisitions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	// health stays open
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected open health, got %d", res.StatusCode)
	}
}

func TestDevLoginAndBearer(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "dev-user",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	_ = json.Unmarshal(data, &login)
	if login.Token == "" {
		t.Fatalf("expected token")
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requisitions", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer list: %d %s", res.StatusCode, string(data))
	}
}

func TestHireGateOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions", map[string]any{"title": "Team lead"}, actorHeader)
	var r RequisitionResponse
	_ = json.Unmarshal(data, &r)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions/"+r.ID+"/candidates", map[string]any{
		"name": "Alex Kim",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create candidate: %d %s", res.StatusCode, string(data))
	}
	var c CandidateResponse
	_ = json.Unmarshal(data, &c)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/move", map[string]any{
		"to": "hired",
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("move: %d %s", res.StatusCode, string(data))
	}
	var mv CandidateMoveResponse
	_ = json.Unmarshal(data, &mv)
	if mv.Applied || mv.Gate == nil || mv.Gate.Phase != "question" {
		t.Fatalf("expected held move, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/confirm-hire", map[string]any{
		"confirmed": true,
	}, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm: %d %s", res.StatusCode, string(data))
	}
	var g HireGateResponse
	_ = json.Unmarshal(data, &g)
	if g.Phase != "success" {
		t.Fatalf("expected success, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/candidates/"+c.ID, nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get candidate: %d %s", res.StatusCode, string(data))
	}
	var fetched CandidateResponse
	_ = json.Unmarshal(data, &fetched)
	if fetched.Stage != "hired" {
		t.Fatalf("expected hired, got %s", fetched.Stage)
	}
	// answering again conflicts
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/candidates/"+c.ID+"/confirm-hire", map[string]any{
		"confirmed": true,
	}, actorHeader)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
}

func TestEscalationEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions", map[string]any{
		"title":    "Overdue",
		"due_date": "2024-03-01",
	}, actorHeader)
	var r RequisitionResponse
	_ = json.Unmarshal(data, &r)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/escalations/current", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("current: %d %s", res.StatusCode, string(data))
	}
	var esc EscalationResponse
	_ = json.Unmarshal(data, &esc)
	if esc.Requisition == nil || esc.Requisition.ID != r.ID || !esc.Requisition.Delayed {
		t.Fatalf("expected delayed notification, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions/"+r.ID+"/justifications", map[string]any{
		"reason":       "budget approval slipped",
		"new_due_date": "2024-06-01",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("justify: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/escalations/current", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("current after justify: %d %s", res.StatusCode, string(data))
	}
	var after EscalationResponse
	_ = json.Unmarshal(data, &after)
	if after.Requisition != nil {
		t.Fatalf("expected empty notification, got %s", string(data))
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/api-keys", map[string]any{
		"actor_id": "tester",
		"name":     "ci",
	}, actorHeader)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create key: %d %s", res.StatusCode, string(data))
	}
	var issued APIKeyResponse
	_ = json.Unmarshal(data, &issued)
	if issued.Key == "" || issued.Key[:3] != "hl_" {
		t.Fatalf("expected one-time plaintext key, got %s", string(data))
	}

	// the plaintext authenticates requests
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requisitions", nil, map[string]string{
		"X-Api-Key": issued.Key,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key auth: %d %s", res.StatusCode, string(data))
	}

	// listing never echoes the plaintext back
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/auth/api-keys?actor_id=tester", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list keys: %d %s", res.StatusCode, string(data))
	}
	var keys []APIKeyResponse
	_ = json.Unmarshal(data, &keys)
	if len(keys) != 1 || keys[0].ID != issued.ID || keys[0].Key != "" {
		t.Fatalf("unexpected key listing: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/auth/api-keys/"+issued.ID, nil, actorHeader)
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("delete key: %d %s", res.StatusCode, string(data))
	}
	// gone keys 404 on revoke and stop authenticating
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/auth/api-keys/"+issued.ID, nil, actorHeader)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on second revoke, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requisitions", nil, map[string]string{
		"X-Api-Key": issued.Key,
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked key rejected, got %d %s", res.StatusCode, string(data))
	}
}

func TestListRequisitionsDelayedFilter(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions", map[string]any{
		"title":    "Overdue",
		"due_date": "2024-03-01",
	}, actorHeader)
	var overdue RequisitionResponse
	_ = json.Unmarshal(data, &overdue)
	_, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/requisitions", map[string]any{
		"title": "On track",
	}, actorHeader)
	var onTrack RequisitionResponse
	_ = json.Unmarshal(data, &onTrack)

	// surfacing the notification is what sets the delayed flag
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/escalations/current", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("current: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requisitions?delayed=true", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delayed=true: %d %s", res.StatusCode, string(data))
	}
	var flagged []RequisitionResponse
	_ = json.Unmarshal(data, &flagged)
	if len(flagged) != 1 || flagged[0].ID != overdue.ID {
		t.Fatalf("expected only the overdue requisition, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requisitions?delayed=false", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delayed=false: %d %s", res.StatusCode, string(data))
	}
	var clear []RequisitionResponse
	_ = json.Unmarshal(data, &clear)
	if len(clear) != 1 || clear[0].ID != onTrack.ID {
		t.Fatalf("expected only the on-track requisition, got %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/requisitions", nil, actorHeader)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unfiltered: %d %s", res.StatusCode, string(data))
	}
	var all []RequisitionResponse
	_ = json.Unmarshal(data, &all)
	if len(all) != 2 {
		t.Fatalf("expected both requisitions, got %s", string(data))
	}
}

func TestValidationEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/requisitions", map[string]any{
		"title": "",
	}, actorHeader)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	_ = json.Unmarshal(data, &envelope)
	if envelope.Error.Code != "validation_failed" || envelope.Error.Details["field"] != "title" {
		t.Fatalf("unexpected envelope: %s", string(data))
	}
}
