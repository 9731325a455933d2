package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/api"
	"github.com/ayo6706/remittance-ledger/internal/api/middleware"
	"github.com/ayo6706/remittance-ledger/internal/config"
	"github.com/ayo6706/remittance-ledger/internal/directory"
	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/idempotency"
	"github.com/ayo6706/remittance-ledger/internal/models"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/ayo6706/remittance-ledger/internal/service"
	"github.com/ayo6706/remittance-ledger/internal/testutil/memstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "remittance-ledger-test"
	testJWTAudience = "remittance-api-test"
)

func TestMain(m *testing.M) {
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	m.Run()
}

type testAPI struct {
	handler http.Handler
	store   *memstore.Store
	office  uuid.UUID
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memstore.New()
	officeID := uuid.New()
	store.AddOffice(repository.Office{
		ID:                 officeID,
		Name:               "Tunis Central",
		Country:            "TN",
		AcceptedCurrencies: []string{"LYD", "USD"},
		Active:             true,
	})

	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		PublicRateLimitRPS: 1000,
		AuthRateLimitRPS:   1000,
		IdempotencyTTL:     time.Hour,
	}
	ledger := service.NewBalanceLedger(store)
	commissions := service.NewCommissionService(store, decimal.NewFromInt(1))
	dir := directory.NewCached(store.Queries(), nil, time.Minute)
	transfers := service.NewTransferService(store, ledger, commissions, dir,
		service.NewCodeGenerator(nil, 5), service.NewRedeemGuard(5, time.Hour),
		service.TransferConfig{TTL: 720 * time.Hour, HomeCountry: "LY", ExpiryBatchSize: 10})

	idemStore := idempotency.NewStore(nil, store, cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, zap.NewNop(), nil, nil, idemStore, api.Services{
		Transfers:   transfers,
		Accounts:    service.NewAccountService(store, ledger),
		Commissions: commissions,
		Offices:     dir,
	})
	return &testAPI{handler: router.Routes(), store: store, office: officeID}
}

func generateToken(accountID uuid.UUID, role string, officeID *uuid.UUID, active bool) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"account_id": accountID.String(),
		"role":       role,
		"name":       "tester",
		"active":     active,
		"iss":        testJWTIssuer,
		"aud":        testJWTAudience,
		"sub":        accountID.String(),
		"iat":        now.Unix(),
		"nbf":        now.Add(-30 * time.Second).Unix(),
		"exp":        now.Add(time.Hour).Unix(),
	}
	if officeID != nil {
		claims["office_id"] = officeID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString(middleware.JWTSecret())
	return tokenString
}

func (a *testAPI) do(t *testing.T, method, path, token, idemKey string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func (a *testAPI) deposit(t *testing.T, accountID uuid.UUID, amount, currency string) {
	t.Helper()
	admin := generateToken(uuid.New(), domain.RoleAdmin, nil, true)
	w := a.do(t, http.MethodPost, "/v1/admin/accounts/"+accountID.String()+"/deposits", admin, uuid.NewString(),
		map[string]string{"amount": amount, "currency": currency})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (a *testAPI) createTransfer(t *testing.T, token, amount string) models.Transfer {
	t.Helper()
	w := a.do(t, http.MethodPost, "/v1/transfers", token, uuid.NewString(), map[string]string{
		"destination_country": "TN",
		"receiver_office_id":  a.office.String(),
		"amount":              amount,
		"currency":            "LYD",
		"receiver_name":       "Salma",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out models.Transfer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI(t)

	accountID := uuid.New().String()
	w := a.do(t, http.MethodGet, "/v1/accounts/"+accountID+"/balances", "", "", nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeProblem(t, w)
	assert.NotEmpty(t, body["type"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/accounts/"+accountID+"/balances", body["instance"])
	assert.NotEmpty(t, body["request_id"])
}

func TestHealthz(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenAPIDocumentServed(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, http.MethodGet, "/openapi.yaml", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/transfers/redeem")
}

func TestQuoteMatchesCreate(t *testing.T) {
	a := setupAPI(t)
	admin := generateToken(uuid.New(), domain.RoleAdmin, nil, true)
	w := a.do(t, http.MethodPost, "/v1/admin/commission-rules", admin, uuid.NewString(), map[string]string{
		"transfer_type": "international",
		"currency":      "LYD",
		"scope":         "system",
		"kind":          "Percentage",
		"value":         "2",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	sender := uuid.New()
	a.deposit(t, sender, "5000", "LYD")
	token := generateToken(sender, domain.RoleUser, nil, true)

	w = a.do(t, http.MethodPost, "/v1/transfers/quote", token, "", map[string]string{
		"amount":              "1000",
		"currency":            "LYD",
		"receiver_office_id":  a.office.String(),
		"destination_country": "TN",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var quote models.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, "international", quote.TransferType)
	assert.Equal(t, "20.000", quote.SystemCommission)
	assert.Equal(t, "1020.000", quote.Total)

	created := a.createTransfer(t, token, "1000")
	assert.Equal(t, quote.SystemCommission, created.SystemCommission)
	assert.Equal(t, quote.Total, created.TotalDebited)
	assert.Equal(t, domain.TransferStatusPending, created.Status)
	assert.Len(t, created.TransferCode, 6)

	w = a.do(t, http.MethodGet, "/v1/accounts/"+sender.String()+"/balances", token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balances struct {
		Balances []models.Balance `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balances))
	require.Len(t, balances.Balances, 1)
	assert.Equal(t, "3980.000", balances.Balances[0].Amount)
}

func TestCreateTransferRequiresIdempotencyKey(t *testing.T) {
	a := setupAPI(t)
	token := generateToken(uuid.New(), domain.RoleUser, nil, true)
	w := a.do(t, http.MethodPost, "/v1/transfers", token, "", map[string]string{
		"destination_country": "TN",
		"receiver_office_id":  a.office.String(),
		"amount":              "10",
		"currency":            "LYD",
		"receiver_name":       "Salma",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeProblem(t, w)
	assert.Contains(t, body["type"], "idempotency/missing-key")
}

func TestCreateTransferReplaysSameKey(t *testing.T) {
	a := setupAPI(t)
	sender := uuid.New()
	a.deposit(t, sender, "100", "LYD")
	token := generateToken(sender, domain.RoleUser, nil, true)
	payload := map[string]string{
		"destination_country": "TN",
		"receiver_office_id":  a.office.String(),
		"amount":              "10",
		"currency":            "LYD",
		"receiver_name":       "Salma",
	}

	first := a.do(t, http.MethodPost, "/v1/transfers", token, "create-1", payload)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := a.do(t, http.MethodPost, "/v1/transfers", token, "create-1", payload)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.NotEmpty(t, second.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	payload["amount"] = "11"
	conflict := a.do(t, http.MethodPost, "/v1/transfers", token, "create-1", payload)
	assert.Equal(t, http.StatusConflict, conflict.Code)

	w := a.do(t, http.MethodGet, "/v1/accounts/"+sender.String()+"/transfers", token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Transfers []models.Transfer `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history.Transfers, 1)
}

func TestCreateTransferProblemCodes(t *testing.T) {
	a := setupAPI(t)
	sender := uuid.New()
	a.deposit(t, sender, "5", "LYD")
	token := generateToken(sender, domain.RoleUser, nil, true)

	tests := []struct {
		name     string
		payload  map[string]string
		status   int
		code     string
		typeHint string
	}{
		{
			name: "insufficient funds",
			payload: map[string]string{
				"destination_country": "TN", "receiver_office_id": a.office.String(),
				"amount": "50", "currency": "LYD", "receiver_name": "Salma",
			},
			status: http.StatusUnprocessableEntity,
			code:   string(domain.CodeInsufficientFunds),
		},
		{
			name: "unknown office",
			payload: map[string]string{
				"destination_country": "TN", "receiver_office_id": uuid.NewString(),
				"amount": "1", "currency": "LYD", "receiver_name": "Salma",
			},
			status: http.StatusNotFound,
			code:   string(domain.CodeNotFound),
		},
		{
			name: "currency not accepted",
			payload: map[string]string{
				"destination_country": "TN", "receiver_office_id": a.office.String(),
				"amount": "1", "currency": "EUR", "receiver_name": "Salma",
			},
			status: http.StatusBadRequest,
			code:   string(domain.CodeValidation),
		},
		{
			name: "negative amount rejected by validator",
			payload: map[string]string{
				"destination_country": "TN", "receiver_office_id": a.office.String(),
				"amount": "-1", "currency": "LYD", "receiver_name": "Salma",
			},
			status:   http.StatusBadRequest,
			typeHint: string(domain.CodeValidation),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, http.MethodPost, "/v1/transfers", token, uuid.NewString(), tt.payload)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			body := decodeProblem(t, w)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
			}
			if tt.typeHint != "" {
				assert.True(t, strings.Contains(body["type"].(string), tt.typeHint))
			}
		})
	}
}

func TestRedeemAndCancelLifecycle(t *testing.T) {
	a := setupAPI(t)
	sender := uuid.New()
	a.deposit(t, sender, "100", "LYD")
	senderToken := generateToken(sender, domain.RoleUser, nil, true)
	created := a.createTransfer(t, senderToken, "40")

	officeID := a.office
	agentToken := generateToken(uuid.New(), domain.RoleAgent, &officeID, true)
	userToken := generateToken(uuid.New(), domain.RoleUser, nil, true)

	w := a.do(t, http.MethodPost, "/v1/transfers/redeem", userToken, uuid.NewString(), map[string]string{"transfer_code": created.TransferCode})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(domain.CodeForbidden), decodeProblem(t, w)["code"])

	w = a.do(t, http.MethodGet, "/v1/transfers/"+created.ID.String(), agentToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var seen models.Transfer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seen))
	assert.Equal(t, models.RedactedCode, seen.TransferCode)

	w = a.do(t, http.MethodPost, "/v1/transfers/redeem", agentToken, uuid.NewString(), map[string]string{"transfer_code": created.TransferCode})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var redeemed models.Transfer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &redeemed))
	assert.Equal(t, domain.TransferStatusCompleted, redeemed.Status)
	assert.Equal(t, models.RedactedCode, redeemed.TransferCode)

	w = a.do(t, http.MethodPost, "/v1/transfers/"+created.ID.String()+"/cancel", senderToken, uuid.NewString(), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(domain.CodeAlreadyTerminal), decodeProblem(t, w)["code"])
}

func TestCancelRefundsSender(t *testing.T) {
	a := setupAPI(t)
	sender := uuid.New()
	a.deposit(t, sender, "100", "LYD")
	token := generateToken(sender, domain.RoleUser, nil, true)
	created := a.createTransfer(t, token, "40")

	stranger := generateToken(uuid.New(), domain.RoleUser, nil, true)
	w := a.do(t, http.MethodPost, "/v1/transfers/"+created.ID.String()+"/cancel", stranger, uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/v1/transfers/"+created.ID.String()+"/cancel", token, uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancelled", cancelled["status"])
	assert.Equal(t, created.ID.String(), cancelled["id"])
	assert.Equal(t, created.TotalDebited, cancelled["refunded"])
	assert.NotContains(t, cancelled, "transfer_code")

	w = a.do(t, http.MethodGet, "/v1/accounts/"+sender.String()+"/statement", token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var statement struct {
		Entries []models.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statement))
	require.Len(t, statement.Entries, 3)
	assert.Equal(t, domain.DirectionCredit, statement.Entries[0].Direction)
}

func TestInternalTransfer(t *testing.T) {
	a := setupAPI(t)
	sender, receiver := uuid.New(), uuid.New()
	a.deposit(t, sender, "50", "USD")
	a.deposit(t, receiver, "1", "USD")
	token := generateToken(sender, domain.RoleUser, nil, true)

	w := a.do(t, http.MethodPost, "/v1/transfers/internal", token, uuid.NewString(), map[string]string{
		"receiver_account_id": receiver.String(),
		"amount":              "20",
		"currency":            "USD",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out models.InternalTransfer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "20.00", out.Amount)
	assert.Equal(t, "20.00", out.TotalDebited)

	receiverToken := generateToken(receiver, domain.RoleUser, nil, true)
	w = a.do(t, http.MethodGet, "/v1/accounts/"+receiver.String()+"/balances", receiverToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"21.00"`)

	w = a.do(t, http.MethodGet, "/v1/accounts/"+receiver.String()+"/balances", token, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminGetRule(t *testing.T) {
	a := setupAPI(t)
	admin := generateToken(uuid.New(), domain.RoleAdmin, nil, true)
	w := a.do(t, http.MethodPost, "/v1/admin/commission-rules", admin, uuid.NewString(), map[string]string{
		"transfer_type": "city",
		"currency":      "LYD",
		"scope":         "system",
		"kind":          "Fixed",
		"value":         "2.5",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.CommissionRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = a.do(t, http.MethodGet, "/v1/admin/commission-rules/"+created.ID.String(), admin, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.CommissionRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "city", got.TransferType)
	assert.True(t, got.Active)

	w = a.do(t, http.MethodGet, "/v1/admin/commission-rules/"+uuid.NewString(), admin, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(domain.CodeNotFound), decodeProblem(t, w)["code"])

	user := generateToken(uuid.New(), domain.RoleUser, nil, true)
	w = a.do(t, http.MethodGet, "/v1/admin/commission-rules/"+created.ID.String(), user, "", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRefreshOffice(t *testing.T) {
	a := setupAPI(t)
	admin := generateToken(uuid.New(), domain.RoleAdmin, nil, true)

	w := a.do(t, http.MethodPost, "/v1/admin/offices/"+a.office.String()+"/refresh", admin, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var office models.Office
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &office))
	assert.Equal(t, a.office, office.ID)
	assert.Equal(t, "TN", office.Country)
	assert.ElementsMatch(t, []string{"LYD", "USD"}, office.AcceptedCurrencies)

	w = a.do(t, http.MethodPost, "/v1/admin/offices/"+uuid.NewString()+"/refresh", admin, "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	a := setupAPI(t)
	token := generateToken(uuid.New(), domain.RoleUser, nil, true)

	w := a.do(t, http.MethodGet, "/v1/admin/commission-rules", token, "", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/v1/admin/transfers/expire", token, "", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	admin := generateToken(uuid.New(), domain.RoleAdmin, nil, true)
	w = a.do(t, http.MethodPost, "/v1/admin/transfers/expire", admin, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sweep models.ExpirySweep
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sweep))
	assert.Zero(t, sweep.Expired)
}

func TestInactivePrincipalRejected(t *testing.T) {
	a := setupAPI(t)
	token := generateToken(uuid.New(), domain.RoleUser, nil, false)
	w := a.do(t, http.MethodPost, "/v1/transfers/quote", token, "", map[string]string{
		"amount":             "1",
		"currency":           "LYD",
		"receiver_office_id": a.office.String(),
	})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestInvalidTokenRejected(t *testing.T) {
	a := setupAPI(t)
	claims := jwt.MapClaims{
		"account_id": uuid.NewString(),
		"role":       domain.RoleUser,
		"iss":        "someone-else",
		"aud":        testJWTAudience,
		"exp":        time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(middleware.JWTSecret())
	require.NoError(t, err)

	w := a.do(t, http.MethodGet, "/v1/accounts/"+uuid.NewString()+"/balances", token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodGet, "/v1/accounts/"+uuid.NewString()+"/balances", generateToken(uuid.New(), "superuser", nil, true), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
