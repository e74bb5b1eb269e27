// Package tochka provides a client for the Tochka bank open API:
// OAuth token refresh, account statements and outgoing payment orders.
package tochka

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

	"stroyfin/internal/core/types"
	"stroyfin/internal/domain/banking"
)

const (
	defaultBaseURL  = "https://enter.tochka.com/uapi"
	defaultAuthURL  = "https://enter.tochka.com/connect/token"
	defaultTimeout  = 30 * time.Second
	dateLayout      = "2006-01-02"
	idempotencyHead = "Idempotency-Key"
)

// Client talks to the Tochka open banking API.
type Client struct {
	baseURL      string
	authURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(base, "/") }
}

// WithAuthURL overrides the token endpoint.
func WithAuthURL(auth string) Option {
	return func(c *Client) { c.authURL = auth }
}

// NewClient creates a Tochka API client.
func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		authURL:      defaultAuthURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshToken exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*banking.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	return &banking.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}, nil
}

type statementResponse struct {
	Data struct {
		Transactions []struct {
			TransactionID   string `json:"transactionId"`
			CreditDebit     string `json:"creditDebitIndicator"`
			Amount          struct {
				Amount string `json:"amount"`
			} `json:"Amount"`
			BookingDate string `json:"bookingDate"`
			Description string `json:"description"`
			DebtorParty struct {
				Name string `json:"name"`
				INN  string `json:"inn"`
			} `json:"DebtorParty"`
			CreditorParty struct {
				Name string `json:"name"`
				INN  string `json:"inn"`
			} `json:"CreditorParty"`
		} `json:"Transaction"`
	} `json:"Data"`
}

// ListTransactions fetches the account statement for the period.
func (c *Client) ListTransactions(ctx context.Context, accessToken, accountExternalID string, from, to time.Time) ([]banking.StatementLine, error) {
	endpoint := fmt.Sprintf("%s/open-banking/v1.0/accounts/%s/transactions?dateFrom=%s&dateTo=%s",
		c.baseURL, url.PathEscape(accountExternalID),
		from.Format(dateLayout), to.Format(dateLayout))

	body, err := c.get(ctx, accessToken, endpoint)
	if err != nil {
		return nil, err
	}

	var stmt statementResponse
	if err := json.Unmarshal(body, &stmt); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}

	lines := make([]banking.StatementLine, 0, len(stmt.Data.Transactions))
	for _, t := range stmt.Data.Transactions {
		amount, err := types.NewMoneyFromString(t.Amount.Amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s has bad amount %q: %w", t.TransactionID, t.Amount.Amount, err)
		}

		line := banking.StatementLine{
			ExternalID:  t.TransactionID,
			Amount:      amount,
			Description: t.Description,
		}

		if t.BookingDate != "" {
			date, err := time.Parse(dateLayout, t.BookingDate)
			if err != nil {
				return nil, fmt.Errorf("transaction %s has bad booking date %q: %w", t.TransactionID, t.BookingDate, err)
			}
			line.PaymentDate = date
		}

		// Credit means money in; the relevant party is the other side
		if strings.EqualFold(t.CreditDebit, "Credit") {
			line.Direction = banking.DirectionIncome
			line.CounterpartyName = t.DebtorParty.Name
			line.CounterpartyINN = t.DebtorParty.INN
		} else {
			line.Direction = banking.DirectionExpense
			line.CounterpartyName = t.CreditorParty.Name
			line.CounterpartyINN = t.CreditorParty.INN
		}

		lines = append(lines, line)
	}
	return lines, nil
}

type orderRequest struct {
	Data struct {
		AccountID        string `json:"accountId"`
		CounterpartyName string `json:"counterpartyName"`
		CounterpartyINN  string `json:"counterpartyInn,omitempty"`
		CounterpartyBIC  string `json:"counterpartyBankBic"`
		CounterpartyAcc  string `json:"counterpartyAccountNumber"`
		Amount           string `json:"amount"`
		Purpose          string `json:"paymentPurpose"`
		PaymentDate      string `json:"paymentDate"`
	} `json:"Data"`
}

type orderResponse struct {
	Data struct {
		RequestID string `json:"requestId"`
	} `json:"Data"`
}

// SendOrder pushes one payment order. The order's idempotency key goes
// into the Idempotency-Key header, so a retried send of the same order
// is absorbed by the bank instead of paying twice.
func (c *Client) SendOrder(ctx context.Context, accessToken string, o *banking.Order) (string, error) {
	var reqBody orderRequest
	reqBody.Data.AccountID = o.BankAccountID.String()
	reqBody.Data.CounterpartyName = o.CounterpartyName
	reqBody.Data.CounterpartyINN = o.CounterpartyINN
	reqBody.Data.CounterpartyBIC = o.CounterpartyBIC
	reqBody.Data.CounterpartyAcc = o.CounterpartyAccount
	reqBody.Data.Amount = types.MoneyString(o.Amount)
	reqBody.Data.Purpose = o.Purpose
	reqBody.Data.PaymentDate = o.PlannedDate.Format(dateLayout)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	endpoint := c.baseURL + "/payment/v1.0/for-sign"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set(idempotencyHead, o.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("order endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var orderResp orderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if orderResp.Data.RequestID == "" {
		return "", fmt.Errorf("order endpoint returned no request id")
	}

	return orderResp.Data.RequestID, nil
}

func (c *Client) get(ctx context.Context, accessToken, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request returned status %d: %s", resp.StatusCode, body)
	}

	return body, nil
}
