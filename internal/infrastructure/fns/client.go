// Package fns provides a counterparty requisites lookup against the
// api-fns.ru EGRUL mirror. Used to enrich counterparties by INN.
package fns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stroyfin/internal/core/apperror"
	"stroyfin/internal/domain/catalogs/counterparty"
)

const (
	defaultBaseURL = "https://api-fns.ru/api"
	defaultTimeout = 15 * time.Second
	serviceName    = "fns"
)

// Client looks up legal entity requisites by INN.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an FNS registry client.
func NewClient(apiKey string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type egrResponse struct {
	Items []struct {
		Company *egrParty `json:"ЮЛ"`
		Trader  *egrParty `json:"ИП"`
	} `json:"items"`
}

type egrParty struct {
	Name      string `json:"НаимСокрЮЛ"`
	FullName  string `json:"НаимПолнЮЛ"`
	TraderFIO string `json:"ФИОПолн"`
	KPP       string `json:"КПП"`
	OGRN      string `json:"ОГРН"`
	Address   string `json:"АдресПолн"`
	Status    string `json:"Статус"`
}

// LookupByINN fetches registry requisites for the INN. Returns a not
// found error when the registry knows nothing about it.
func (c *Client) LookupByINN(ctx context.Context, inn string) (*counterparty.RegistryInfo, error) {
	endpoint := fmt.Sprintf("%s/egr?req=%s&key=%s",
		c.baseURL, url.QueryEscape(inn), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.NewIntegration(serviceName, "registry request failed").
			WithDetail("inn", inn).
			WithDetail("error", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read registry response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.NewIntegration(serviceName,
			fmt.Sprintf("registry returned status %d", resp.StatusCode)).
			WithDetail("inn", inn)
	}

	var egr egrResponse
	if err := json.Unmarshal(body, &egr); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}

	for _, item := range egr.Items {
		party := item.Company
		if party == nil {
			party = item.Trader
		}
		if party == nil {
			continue
		}

		info := &counterparty.RegistryInfo{
			Name:         party.Name,
			KPP:          party.KPP,
			OGRN:         party.OGRN,
			LegalAddress: party.Address,
			Active:       isActiveStatus(party.Status),
		}
		if info.Name == "" {
			info.Name = party.FullName
		}
		if info.Name == "" {
			info.Name = party.TraderFIO
		}
		return info, nil
	}

	return nil, apperror.NewNotFound("counterparty registry", inn)
}

func isActiveStatus(status string) bool {
	if status == "" {
		return true
	}
	lower := strings.ToLower(status)
	return strings.Contains(lower, "действующ")
}
