package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	authz "github.com/oncoayuda/casework/internal/auth"
	"github.com/oncoayuda/casework/internal/casework/infrastructure"
	"github.com/oncoayuda/casework/internal/casework/service"
	"github.com/oncoayuda/casework/internal/shared/auth"
	"github.com/oncoayuda/casework/internal/shared/types"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type client struct {
	t      *testing.T
	server *httptest.Server
}

func newClient(t *testing.T) *client {
	t.Helper()
	svc := service.New(infrastructure.NewMemoryStore(), zaptest.NewLogger(t),
		service.WithClock(func() time.Time { return testNow }),
	)

	r := chi.NewRouter()
	r.Use(auth.DevMiddleware)
	r.Mount("/api/v1", NewHandler(svc, zaptest.NewLogger(t)).Routes())

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &client{t: t, server: server}
}

// do sends body as JSON on behalf of actor and decodes the reply into out.
func (c *client) do(actor authz.Actor, method, path string, body any, out any) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.server.URL+"/api/v1"+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if !actor.ID.IsZero() {
		req.Header.Set(auth.HeaderActorID, actor.ID.String())
		req.Header.Set(auth.HeaderActorRole, string(actor.Role))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var (
	socialWorker = authz.Actor{ID: "ts-01", Role: authz.RoleTrabajadorSocial}
	psychologist = authz.Actor{ID: "ps-01", Role: authz.RolePsicologo}
	admin        = authz.Actor{ID: "ad-01", Role: authz.RoleAdministrador}
	assistant    = authz.Actor{ID: "as-01", Role: authz.RoleAsistente}
)

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}

func intakeBody() map[string]any {
	return map[string]any{
		"child": map[string]any{
			"first_name": "Ana",
			"last_name":  "Quispe",
			"birth_date": "2017-01-10",
		},
		"diagnosis": "Leucemia linfoblástica aguda",
		"guardian": map[string]any{
			"name":    "María Quispe",
			"contact": map[string]any{"phone": "71234567"},
			"address": map[string]any{"street": "Av. Busch 123", "city": "Cochabamba"},
		},
	}
}

func TestWorkflowOverHTTP(t *testing.T) {
	c := newClient(t)

	var created struct {
		ID     types.ID `json:"id"`
		Code   string   `json:"code"`
		Status string   `json:"status"`
	}
	require.Equal(t, http.StatusCreated, c.do(socialWorker, http.MethodPost, "/cases", intakeBody(), &created))
	assert.Equal(t, "C001", created.Code)
	assert.Equal(t, "REGISTRO_INICIAL", created.Status)

	var social struct {
		TotalScore int    `json:"total_score"`
		Level      string `json:"vulnerability_level"`
	}
	status := c.do(socialWorker, http.MethodPost, "/cases/"+created.ID.String()+"/social-evaluation", map[string]any{
		"scores": map[string]any{
			"income_bracket":          2,
			"household_size":          5,
			"housing":                 10,
			"employment":              15,
			"health_access":           10,
			"monthly_medical_expense": 150,
		},
	}, &social)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 50, social.TotalScore)
	assert.Equal(t, "MEDIO", social.Level)

	status = c.do(psychologist, http.MethodPost, "/cases/"+created.ID.String()+"/psychological-evaluation",
		map[string]any{"report_file_id": "uploads/psico/ana.pdf"}, nil)
	require.Equal(t, http.StatusCreated, status)

	var denied errorBody
	status = c.do(psychologist, http.MethodGet, "/cases/"+created.ID.String()+"/social-evaluation", nil, &denied)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", denied.Code)

	var beneficiary struct {
		ID          types.ID `json:"id"`
		Code        string   `json:"code"`
		AdminStatus string   `json:"estado_beneficiario"`
	}
	status = c.do(admin, http.MethodPost, "/cases/"+created.ID.String()+"/decide",
		map[string]any{"assignee_id": assistant.ID}, &beneficiary)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "B001", beneficiary.Code)
	assert.Equal(t, "ACTIVO", beneficiary.AdminStatus)

	var linked struct {
		Code string `json:"code"`
	}
	status = c.do(assistant, http.MethodGet, "/cases/"+created.ID.String()+"/beneficiary", nil, &linked)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "B001", linked.Code)

	var byCode struct {
		Data  []map[string]any `json:"data"`
		Total int              `json:"total"`
	}
	status = c.do(admin, http.MethodGet, "/cases?code=c001", nil, &byCode)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 1, byCode.Total)
	assert.Equal(t, created.ID.String(), byCode.Data[0]["id"])

	var rejected errorBody
	status = c.do(admin, http.MethodPost, "/cases/"+created.ID.String()+"/reject", nil, &rejected)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", rejected.Code)

	var request struct {
		ID     types.ID `json:"id"`
		Code   string   `json:"code"`
		Status string   `json:"estado"`
	}
	status = c.do(socialWorker, http.MethodPost, "/beneficiaries/"+beneficiary.ID.String()+"/aid-requests", map[string]any{
		"tipo_ayuda":     "MEDICAMENTOS",
		"prioridad":      "ALTA",
		"estimated_cost": 300,
	}, &request)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "SOL-001-01", request.Code)
	assert.Equal(t, "PENDIENTE", request.Status)

	var tooPrecise errorBody
	status = c.do(assistant, http.MethodPost, "/aid-requests/"+request.ID.String()+"/review",
		map[string]any{"decision": "RECEPCIONAR", "approved_amount": 280.555}, &tooPrecise)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, tooPrecise.Details, "approved_amount")

	status = c.do(assistant, http.MethodPost, "/aid-requests/"+request.ID.String()+"/review",
		map[string]any{"decision": "RECEPCIONAR", "approved_amount": 280}, &request)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "RECEPCIONADO", request.Status)

	status = c.do(assistant, http.MethodPost, "/aid-requests/"+request.ID.String()+"/deliver", map[string]any{
		"actual_cost":   275,
		"place":         "Farmacia Central",
		"provider":      "Droguería Inti",
		"delivery_date": "2026-03-10",
	}, &request)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ENTREGADO", request.Status)

	var list struct {
		Total int `json:"total"`
	}
	status = c.do(assistant, http.MethodGet, "/beneficiaries/"+beneficiary.ID.String()+"/aid-requests?estado=ENTREGADO", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, list.Total)

	var history struct {
		Total int `json:"total"`
	}
	status = c.do(assistant, http.MethodGet, "/beneficiaries/"+beneficiary.ID.String()+"/medical-history", nil, &history)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, history.Total)
}

func TestErrorResponses(t *testing.T) {
	c := newClient(t)

	tests := []struct {
		name       string
		actor      authz.Actor
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing actor",
			method:     http.MethodGet,
			path:       "/cases",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed id",
			actor:      admin,
			method:     http.MethodGet,
			path:       "/cases/not-a-uuid",
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "unknown case",
			actor:      admin,
			method:     http.MethodGet,
			path:       "/cases/" + types.NewID().String(),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "wrong role",
			actor:      assistant,
			method:     http.MethodPost,
			path:       "/cases",
			body:       intakeBody(),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "invalid intake",
			actor:      socialWorker,
			method:     http.MethodPost,
			path:       "/cases",
			body:       map[string]any{"diagnosis": "LLA"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			status := c.do(tt.actor, tt.method, tt.path, tt.body, &body)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body.Code)
			}
		})
	}
}

func TestUnknownCodeIsEmptyList(t *testing.T) {
	c := newClient(t)

	var list struct {
		Data  []any `json:"data"`
		Total int   `json:"total"`
	}
	status := c.do(admin, http.MethodGet, "/cases?code=C999", nil, &list)
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, list.Total)
	assert.Empty(t, list.Data)
}

func TestCaseWithoutBeneficiary(t *testing.T) {
	c := newClient(t)

	var created struct {
		ID types.ID `json:"id"`
	}
	require.Equal(t, http.StatusCreated, c.do(socialWorker, http.MethodPost, "/cases", intakeBody(), &created))

	var body errorBody
	status := c.do(admin, http.MethodGet, "/cases/"+created.ID.String()+"/beneficiary", nil, &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestMalformedDateIsBadRequest(t *testing.T) {
	c := newClient(t)

	body := intakeBody()
	body["child"].(map[string]any)["birth_date"] = "10/01/2017"
	var resp errorBody
	status := c.do(socialWorker, http.MethodPost, "/cases", body, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", resp.Code)
}

func TestValidationListsEveryMissingField(t *testing.T) {
	c := newClient(t)

	var body errorBody
	status := c.do(socialWorker, http.MethodPost, "/cases", map[string]any{}, &body)
	require.Equal(t, http.StatusBadRequest, status)
	for _, field := range []string{"child.first_name", "child.last_name", "child.birth_date", "diagnosis", "guardian.name", "guardian.contact.phone"} {
		assert.Equal(t, "required", body.Details[field], field)
	}
}
