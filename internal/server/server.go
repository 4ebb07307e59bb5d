package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/escalate"
	"hireline/internal/gate"
	"hireline/internal/repo"
	"hireline/internal/stage"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"guard_violation"`
	Message string         `json:"message" example:"registration happens through the register-requisition task"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"from\":\"requested\",\"to\":\"registered\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Hireline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Hireline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerRequisitions(group, cfg.Engine)
	registerBoard(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerEscalations(group, cfg.Engine)
	registerJustifications(group, cfg.Engine)
	registerCandidates(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var gv stage.GuardViolationError
	if errors.As(err, &gv) {
		return newAPIError(http.StatusConflict, "guard_violation", gv.Reason, map[string]any{"from": gv.From, "to": gv.To})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), map[string]any{"field": ve.Field, "reason": ve.Reason})
	}
	var dr engine.DanglingReferenceError
	if errors.As(err, &dr) {
		return newAPIError(http.StatusNotFound, "dangling_reference", err.Error(), map[string]any{"kind": dr.Kind, "id": dr.ID})
	}
	if errors.Is(err, gate.ErrNotOpen) {
		return newAPIError(http.StatusConflict, "gate_not_open", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "open tasks"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]bool{
		"/" + strings.TrimPrefix(path.Join(basePath, "health"), "/"):         true,
		"/" + strings.TrimPrefix(path.Join(basePath, "auth/dev/login"), "/"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Hireline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerRequisitions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-requisition",
		Method:        http.MethodPost,
		Path:          "/requisitions",
		Summary:       "Create requisition",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateRequisitionRequest `json:"body"`
	}) (*struct {
		Body RequisitionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.RequisitionCreateOptions{
			Title:   input.Body.Title,
			ActorID: actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.DueDate != nil {
			opts.DueDate = *input.Body.DueDate
		}
		r, err := e.CreateRequisition(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequisitionResponse `json:"body"`
		}{Body: requisitionResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requisitions",
		Method:      http.MethodGet,
		Path:        "/requisitions",
		Summary:     "List requisitions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Stage   string `query:"stage" enum:"requested,registered,announced,in_selection,archived,"`
		Delayed string `query:"delayed" enum:"true,false,"`
	}) (*struct {
		Body []RequisitionResponse `json:"body"`
	}, error) {
		filters := repo.RequisitionFilters{Stage: input.Stage}
		if input.Delayed != "" {
			delayed := input.Delayed == "true"
			filters.Delayed = &delayed
		}
		items, err := e.Repo.ListRequisitions(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []RequisitionResponse `json:"body"`
		}{Body: mapRequisitions(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-requisition",
		Method:      http.MethodGet,
		Path:        "/requisitions/{requisition_id}",
		Summary:     "Get requisition",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RequisitionID string `path:"requisition_id"`
	}) (*struct {
		Body RequisitionResponse `json:"body"`
	}, error) {
		r, err := e.Repo.GetRequisition(ctx, input.RequisitionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RequisitionResponse `json:"body"`
		}{Body: requisitionResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-requisition",
		Method:      http.MethodPost,
		Path:        "/requisitions/{requisition_id}/move",
		Summary:     "Move requisition between stages",
		Description: "Rejected moves return accepted=false with the violation; the requisition is left untouched.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		RequisitionID string                 `path:"requisition_id"`
		Body          MoveRequisitionRequest `json:"body"`
	}) (*struct {
		Body MoveResultResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.MoveOptions{
			RequisitionID: input.RequisitionID,
			To:            input.Body.To,
			Position:      input.Body.Position,
			ActorID:       actorID,
		}
		if input.Body.From != nil {
			opts.From = *input.Body.From
		}
		res, err := e.AttemptMove(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		out := MoveResultResponse{Accepted: res.Accepted}
		if res.Violation != nil {
			out.Violation = &ViolationResponse{
				From:   res.Violation.From,
				To:     res.Violation.To,
				Reason: res.Violation.Reason,
			}
		}
		if res.Accepted {
			r := requisitionResponse(res.Requisition)
			out.Requisition = &r
		}
		return &struct {
			Body MoveResultResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-requisition",
		Method:      http.MethodDelete,
		Path:        "/requisitions/{requisition_id}",
		Summary:     "Delete requisition",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		RequisitionID string `path:"requisition_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteRequisition(ctx, input.RequisitionID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-briefing",
		Method:      http.MethodGet,
		Path:        "/requisitions/{requisition_id}/briefing",
		Summary:     "Get hiring briefing",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RequisitionID string `path:"requisition_id"`
	}) (*struct {
		Body BriefingResponse `json:"body"`
	}, error) {
		b, err := e.Repo.GetBriefing(ctx, input.RequisitionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BriefingResponse `json:"body"`
		}{Body: briefingResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-allocations",
		Method:      http.MethodGet,
		Path:        "/requisitions/{requisition_id}/allocations",
		Summary:     "List campaign allocations",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RequisitionID string `path:"requisition_id"`
	}) (*struct {
		Body []AllocationResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListAllocations(ctx, input.RequisitionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AllocationResponse `json:"body"`
		}{Body: mapAllocations(items)}, nil
	})
}

func registerBoard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "board",
		Method:      http.MethodGet,
		Path:        "/board",
		Summary:     "Board view",
		Description: "Requisitions grouped by stage in board order, plus a virtual delayed column.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []BoardColumnResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListRequisitions(ctx, repo.RequisitionFilters{})
		if err != nil {
			return nil, handleError(err)
		}
		byStage := map[string][]RequisitionResponse{}
		var delayed []RequisitionResponse
		for _, r := range items {
			resp := requisitionResponse(r)
			byStage[r.Stage] = append(byStage[r.Stage], resp)
			if r.Delayed {
				delayed = append(delayed, resp)
			}
		}
		cols := make([]BoardColumnResponse, 0, len(stage.Order)+1)
		for _, s := range stage.Order {
			reqs := byStage[s]
			if reqs == nil {
				reqs = []RequisitionResponse{}
			}
			cols = append(cols, BoardColumnResponse{Stage: s, Requisitions: reqs})
		}
		if delayed == nil {
			delayed = []RequisitionResponse{}
		}
		cols = append(cols, BoardColumnResponse{Stage: "delayed", Requisitions: delayed})
		return &struct {
			Body []BoardColumnResponse `json:"body"`
		}{Body: cols}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskCreateOptions{
			Kind:    input.Body.Kind,
			Title:   input.Body.Title,
			ActorID: actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		if input.Body.RequisitionID != nil {
			opts.RequisitionID = *input.Body.RequisitionID
		}
		t, err := e.CreateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		RequisitionID string `query:"requisition_id"`
		Status        string `query:"status" enum:"todo,doing,done,archived,"`
		Kind          string `query:"kind"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			RequisitionID: input.RequisitionID,
			Status:        input.Status,
			Kind:          input.Kind,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Set task status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string               `path:"task_id"`
		Body   SetTaskStatusRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SetTaskStatus(ctx, input.TaskID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete task",
		Description: "Marks the task done and applies its linked requisition transition in the same transaction.",
		Errors: []int{
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string              `path:"task_id"`
		Body   CompleteTaskRequest `json:"body,omitempty"`
	}) (*struct {
		Body CompleteTaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CompleteTaskOptions{
			TaskID:    input.TaskID,
			ActorID:   actorID,
			Platforms: input.Body.Platforms,
		}
		if input.Body.Briefing != nil {
			opts.Briefing = &engine.BriefingSpec{
				Role:         input.Body.Briefing.Role,
				Compensation: input.Body.Briefing.Compensation,
				Requirements: input.Body.Briefing.Requirements,
				Headcount:    input.Body.Briefing.Headcount,
			}
		}
		res, err := e.CompleteTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CompleteTaskResponse `json:"body"`
		}{Body: CompleteTaskResponse{
			Task:                     taskResponse(res.Task),
			RequisitionEffectApplied: res.RequisitionEffectApplied,
		}}, nil
	})
}

func registerEscalations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "current-escalation",
		Method:      http.MethodGet,
		Path:        "/escalations/current",
		Summary:     "Current overdue notification",
		Description: "Surfaces at most one overdue requisition at a time; flags it delayed on first surface.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body EscalationResponse `json:"body"`
	}, error) {
		r, err := e.CurrentEscalation(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := EscalationResponse{}
		if r != nil {
			resp := requisitionResponse(*r)
			out.Requisition = &resp
			out.DaysOverdue = escalate.DaysOverdue(r.DueDate, e.Now().UTC())
		}
		return &struct {
			Body EscalationResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "escalation-count",
		Method:      http.MethodGet,
		Path:        "/escalations/count",
		Summary:     "Pending escalation count",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body EscalationCountResponse `json:"body"`
	}, error) {
		n, err := e.PendingEscalationCount(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EscalationCountResponse `json:"body"`
		}{Body: EscalationCountResponse{Pending: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dismiss-escalation",
		Method:      http.MethodPost,
		Path:        "/escalations/dismiss",
		Summary:     "Dismiss current notification",
		Description: "Leaves the requisition delayed; justification still required to clear it.",
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DismissEscalation(ctx, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerJustifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-justification",
		Method:        http.MethodPost,
		Path:          "/requisitions/{requisition_id}/justifications",
		Summary:       "Justify a delayed requisition",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		RequisitionID string                     `path:"requisition_id"`
		Body          CreateJustificationRequest `json:"body"`
	}) (*struct {
		Body JustificationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.SubmitJustification(ctx, engine.JustificationOptions{
			RequisitionID: input.RequisitionID,
			Reason:        input.Body.Reason,
			NewDueDate:    input.Body.NewDueDate,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body JustificationResponse `json:"body"`
		}{Body: justificationResponse(j)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-justifications",
		Method:      http.MethodGet,
		Path:        "/requisitions/{requisition_id}/justifications",
		Summary:     "List justifications",
	}, func(ctx context.Context, input *struct {
		RequisitionID string `path:"requisition_id"`
	}) (*struct {
		Body []JustificationResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListJustifications(ctx, input.RequisitionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []JustificationResponse `json:"body"`
		}{Body: mapJustifications(items)}, nil
	})
}

func registerCandidates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-candidate",
		Method:        http.MethodPost,
		Path:          "/requisitions/{requisition_id}/candidates",
		Summary:       "Add candidate",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		RequisitionID string                 `path:"requisition_id"`
		Body          CreateCandidateRequest `json:"body"`
	}) (*struct {
		Body CandidateResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.CandidateCreateOptions{
			RequisitionID: input.RequisitionID,
			Name:          input.Body.Name,
			Position:      input.Body.Position,
			ActorID:       actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		c, err := e.AddCandidate(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateResponse `json:"body"`
		}{Body: candidateResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/requisitions/{requisition_id}/candidates",
		Summary:     "List candidates",
	}, func(ctx context.Context, input *struct {
		RequisitionID string `path:"requisition_id"`
		Stage         string `query:"stage"`
	}) (*struct {
		Body []CandidateResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListCandidates(ctx, repo.CandidateFilters{
			RequisitionID: input.RequisitionID,
			Stage:         input.Stage,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CandidateResponse `json:"body"`
		}{Body: mapCandidates(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-candidate",
		Method:      http.MethodGet,
		Path:        "/candidates/{candidate_id}",
		Summary:     "Get candidate",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CandidateID string `path:"candidate_id"`
	}) (*struct {
		Body CandidateResponse `json:"body"`
	}, error) {
		c, err := e.Repo.GetCandidate(ctx, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateResponse `json:"body"`
		}{Body: candidateResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-candidate",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/move",
		Summary:     "Move candidate between selection stages",
		Description: "Moving into hired opens a confirmation dialog instead of applying the move.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		CandidateID string               `path:"candidate_id"`
		Body        MoveCandidateRequest `json:"body"`
	}) (*struct {
		Body CandidateMoveResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.AttemptCandidateMove(ctx, engine.CandidateMoveOptions{
			CandidateID: input.CandidateID,
			To:          input.Body.To,
			Position:    input.Body.Position,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidateMoveResponse `json:"body"`
		}{Body: candidateMoveResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "confirm-hire",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/confirm-hire",
		Summary:     "Answer the hire confirmation dialog",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CandidateID string             `path:"candidate_id"`
		Body        ConfirmHireRequest `json:"body"`
	}) (*struct {
		Body HireGateResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.ConfirmHire(ctx, input.CandidateID, input.Body.Confirmed, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HireGateResponse `json:"body"`
		}{Body: hireGateResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-hire-gate",
		Method:      http.MethodDelete,
		Path:        "/candidates/{candidate_id}/hire-gate",
		Summary:     "Dismiss the hire dialog",
	}, func(ctx context.Context, input *struct {
		CandidateID string `path:"candidate_id"`
	}) (*struct{}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		e.CloseHireGate(input.CandidateID)
		return &struct{}{}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Activity log",
		Description: "Append-only history, newest first.",
	}, func(ctx context.Context, input *struct {
		RequisitionID string `query:"requisition_id"`
		Action        string `query:"action"`
		EntityKind    string `query:"entity_kind"`
		EntityID      string `query:"entity_id"`
		Limit         int    `query:"limit"`
		Cursor        int64  `query:"cursor"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		items, err := e.Repo.LatestActivity(ctx, repo.ActivityFilters{
			RequisitionID: input.RequisitionID,
			Action:        input.Action,
			EntityKind:    input.EntityKind,
			EntityID:      input.EntityID,
			Limit:         normalizeLimit(input.Limit),
			Cursor:        input.Cursor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: mapActivity(items)}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/auth/api-keys",
		Summary:       "Issue an API key",
		Description:   "The plaintext key is returned exactly once.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.ActorID) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		key, rec, err := issueAPIKey(ctx, e, input.Body.ActorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{
			ID:        rec.ID,
			ActorID:   rec.ActorID,
			Name:      rec.Name,
			Key:       key,
			CreatedAt: rec.CreatedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/auth/api-keys",
		Summary:     "List API keys",
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(items))
		for _, k := range items {
			out = append(out, APIKeyResponse{
				ID:        k.ID,
				ActorID:   k.ActorID,
				Name:      k.Name,
				CreatedAt: k.CreatedAt,
			})
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/auth/api-keys/{key_id}",
		Summary:     "Revoke API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func signDevToken(secret, actorID string, roles []string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now().UTC()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(12 * time.Hour)),
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func issueAPIKey(ctx context.Context, e engine.Engine, actorID, name string) (string, domain.APIKey, error) {
	key := "hl_" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	rec, err := e.CreateAPIKey(ctx, actorID, name, key)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	return key, rec, nil
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
