package tochka

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stroyfin/internal/core/id"
	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/banking"
)

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "old-refresh", r.FormValue("refresh_token"))
		assert.Equal(t, "client-1", r.FormValue("client_id"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	c := NewClient("client-1", "secret", WithAuthURL(srv.URL))
	tok, err := c.RefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)

	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "new-refresh", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), tok.ExpiresAt, time.Minute)
}

func TestRefreshToken_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("client-1", "secret", WithAuthURL(srv.URL))
	_, err := c.RefreshToken(context.Background(), "stale")
	assert.Error(t, err)
}

func TestListTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Path, "/open-banking/v1.0/accounts/acc-1/transactions")
		assert.Equal(t, "2026-08-01", r.URL.Query().Get("dateFrom"))

		_, _ = w.Write([]byte(`{
			"Data": {
				"Transaction": [
					{
						"transactionId": "txn-1",
						"creditDebitIndicator": "Credit",
						"Amount": {"amount": "150000.00"},
						"bookingDate": "2026-08-03",
						"description": "Оплата по договору 12-СМР",
						"DebtorParty": {"name": "ООО Заказчик", "inn": "7707083893"}
					},
					{
						"transactionId": "txn-2",
						"creditDebitIndicator": "Debit",
						"Amount": {"amount": "4200.50"},
						"bookingDate": "2026-08-04",
						"description": "Комиссия банка",
						"CreditorParty": {"name": "АО Банк", "inn": "7710140679"}
					}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient("client-1", "secret", WithBaseURL(srv.URL))
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	lines, err := c.ListTransactions(context.Background(), "token-1", "acc-1", from, to)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	income := lines[0]
	assert.Equal(t, "txn-1", income.ExternalID)
	assert.Equal(t, banking.DirectionIncome, income.Direction)
	assert.True(t, income.Amount.Equal(types.MustMoney("150000.00")))
	assert.Equal(t, "ООО Заказчик", income.CounterpartyName)
	assert.Equal(t, "7707083893", income.CounterpartyINN)
	assert.Equal(t, time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC), income.PaymentDate)

	expense := lines[1]
	assert.Equal(t, banking.DirectionExpense, expense.Direction)
	assert.Equal(t, "АО Банк", expense.CounterpartyName)
}

func TestListTransactions_BadAmountFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Data":{"Transaction":[{"transactionId":"txn-1","Amount":{"amount":"oops"}}]}}`))
	}))
	defer srv.Close()

	c := NewClient("client-1", "secret", WithBaseURL(srv.URL))
	_, err := c.ListTransactions(context.Background(), "t", "acc-1", time.Now(), time.Now())
	assert.Error(t, err)
}

func TestSendOrder(t *testing.T) {
	order := banking.NewOrder(id.New(), id.New(), types.MustMoney("75000"), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	order.CounterpartyName = "ООО Поставщик"
	order.CounterpartyAccount = "40702810900000005555"
	order.CounterpartyBIC = "044525999"
	order.Purpose = "Оплата счёта №15"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/payment/v1.0/for-sign")
		assert.Equal(t, order.IdempotencyKey, r.Header.Get("Idempotency-Key"))

		var req orderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "75000.00", req.Data.Amount)
		assert.Equal(t, "ООО Поставщик", req.Data.CounterpartyName)
		assert.Equal(t, "2026-09-01", req.Data.PaymentDate)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"Data": map[string]any{"requestId": "req-42"},
		})
	}))
	defer srv.Close()

	c := NewClient("client-1", "secret", WithBaseURL(srv.URL))
	requestID, err := c.SendOrder(context.Background(), "token-1", order)
	require.NoError(t, err)
	assert.Equal(t, "req-42", requestID)
}

func TestSendOrder_MissingRequestIDFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Data":{}}`))
	}))
	defer srv.Close()

	c := NewClient("client-1", "secret", WithBaseURL(srv.URL))
	order := banking.NewOrder(id.New(), id.New(), types.MustMoney("10"), time.Now())
	_, err := c.SendOrder(context.Background(), "token-1", order)
	assert.Error(t, err)
}
