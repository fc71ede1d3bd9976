package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mint-desk/pkg/config"
	"mint-desk/pkg/models"
	"mint-desk/pkg/reconcile"
	"mint-desk/pkg/services"
)

type fakeService struct {
	receipt   services.Receipt
	submitErr error
	updateErr error
	updates   []string
}

func (f *fakeService) Submit(ctx context.Context, form models.MintFormData, purchase models.Purchase) (services.Receipt, error) {
	return f.receipt, f.submitErr
}

func (f *fakeService) UpdateStatus(ctx context.Context, id string, update models.StatusUpdate) error {
	f.updates = append(f.updates, id+"="+update.Status)
	return f.updateErr
}

type fakeViews struct {
	view *reconcile.View
	ch   chan *reconcile.View
}

func (f *fakeViews) Current() *reconcile.View { return f.view }

func (f *fakeViews) Listen() (<-chan *reconcile.View, func()) { return f.ch, func() {} }

type admins struct{}

func (admins) IsAdmin(wallet string) bool { return strings.EqualFold(wallet, "0xadmin") }

func testConfig() *config.Config {
	return &config.Config{
		PaymentRedirectURL: "https://pay.example/checkout",
		ThankYouURL:        "https://shop.example/thanks",
		ContractAddress:    "0xcontract",
		ChainID:            137,
		TokenID:            "0",
		CORSOrigins:        []string{"https://shop.example"},
	}
}

type fakeReadiness struct{ err error }

func (f fakeReadiness) Ready(context.Context) error { return f.err }

func newTestRouter(svc *fakeService, views *fakeViews) *gin.Engine {
	return newTestRouterWithStore(svc, views, nil)
}

func newTestRouterWithStore(svc *fakeService, views *fakeViews, storeHealth ReadinessChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(svc, views, storeHealth, testConfig(), zap.NewNop())
	return NewRouter(h, admins{}, zap.NewNop())
}

func do(r http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	views := &fakeViews{}
	w := do(newTestRouter(&fakeService{}, views), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","dashboard":"loading"}`, w.Body.String())

	views.view = &reconcile.View{}
	w = do(newTestRouterWithStore(&fakeService{}, views, fakeReadiness{}), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","dashboard":"ready"}`, w.Body.String())

	down := fakeReadiness{err: errors.New("connection refused")}
	w = do(newTestRouterWithStore(&fakeService{}, views, down), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}

func TestStorefrontGate(t *testing.T) {
	r := newTestRouter(&fakeService{}, &fakeViews{})

	w := do(r, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://pay.example/checkout", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "redirected=true")

	w = do(r, http.MethodGet, "/?status=paid", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"contractAddress":"0xcontract"`)

	w = do(r, http.MethodGet, "/", "", map[string]string{"Cookie": "redirected=true"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleMintRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "created",
			body:     `{"firstName":"Mario","lastName":"Rossi","email":"m@x.com","phoneNumber":"333","quantity":1}`,
			wantCode: http.StatusCreated,
			wantBody: `{"id":"k1","tokenId":"4","redirect":"https://shop.example/thanks"}`,
		},
		{
			name:     "bad json",
			body:     `{"firstName":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "validation",
			body:     `{}`,
			err:      &services.ValidationError{Fields: []services.FieldError{{Field: "phoneNumber", Msg: "required"}}},
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"Missing required fields","fields":[{"field":"phoneNumber","message":"required"}]}`,
		},
		{
			name:     "store down",
			body:     `{}`,
			err:      &services.SubmissionFailedError{Op: "scan", Cause: errors.New("timeout")},
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"error":"Something went wrong, please try again later"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{receipt: services.Receipt{ID: "k1", TokenID: "4"}, submitErr: tt.err}
			w := do(newTestRouter(svc, &fakeViews{}), http.MethodPost, "/api/mint-requests", tt.body, nil)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestHandleStatusUpdate(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, &fakeViews{})

	w := do(r, http.MethodPatch, "/api/mint-requests/k1/status", `{"status":"confirmed"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"k1=confirmed"}, svc.updates)

	w = do(r, http.MethodPatch, "/api/mint-requests/k1/status", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.updateErr = services.ErrRecordNotFound
	w = do(r, http.MethodPatch, "/api/mint-requests/nope/status", `{"status":"failed"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.updateErr = errors.New("connection reset")
	w = do(r, http.MethodPatch, "/api/mint-requests/k1/status", `{"status":"failed"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPeople(t *testing.T) {
	views := &fakeViews{}
	r := newTestRouter(&fakeService{}, views)
	admin := map[string]string{"X-Wallet-Address": "0xADMIN"}

	w := do(r, http.MethodGet, "/admin/people", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/admin/people", "", map[string]string{"X-Wallet-Address": "0xother"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodGet, "/admin/people?wallet=0xadmin", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "query wallet only opens the stream")

	w = do(r, http.MethodGet, "/admin/people", "", admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	views.view = &reconcile.View{
		Rows: []reconcile.Row{{
			MergedPerson: reconcile.MergedPerson{Participant: models.Participant{Name: "Mario", Email: "m@x.com"}},
			Status:       reconcile.Status{Kind: reconcile.PaidNoKYC},
		}},
		NextTokenID: "3",
	}
	w = do(r, http.MethodGet, "/admin/people", "", admin)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		People []struct {
			Email  string `json:"email"`
			Status struct {
				Kind  string `json:"kind"`
				Label string `json:"label"`
			} `json:"status"`
		} `json:"people"`
		NextTokenID string `json:"nextTokenId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.People, 1)
	assert.Equal(t, "paid", got.People[0].Status.Kind)
	assert.Equal(t, "Paid (No kyc)", got.People[0].Status.Label)
	assert.Equal(t, "3", got.NextTokenID)
}

func TestPeopleStream(t *testing.T) {
	views := &fakeViews{ch: make(chan *reconcile.View, 1)}
	views.ch <- &reconcile.View{NextTokenID: "7"}
	srv := httptest.NewServer(newTestRouter(&fakeService{}, views))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/admin/people/stream?wallet=0xADMIN", nil)
	require.NoError(t, err)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if strings.HasPrefix(scanner.Text(), "data:") {
			break
		}
	}
	require.NotEmpty(t, lines)
	assert.Contains(t, lines, "event:view")
	assert.Contains(t, lines[len(lines)-1], `"nextTokenId":"7"`)
}
