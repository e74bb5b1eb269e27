// Package bitrix provides a Bitrix24 REST client for the supply
// pipeline: deals, timeline comments and file downloads over an
// inbound webhook URL.
package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stroyfin/internal/domain/supply"
)

const defaultTimeout = 30 * time.Second

// timeline comment entity type for deals
const dealEntityType = "deal"

// Client calls the Bitrix24 REST API through a webhook base URL of the
// form https://portal.bitrix24.ru/rest/1/token/.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Bitrix24 client.
func NewClient(webhookURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(webhookURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type apiResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) (json.RawMessage, error) {
	endpoint := c.baseURL + "/" + method + ".json"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", method, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("%s failed: %s (%s)", method, envelope.Error, envelope.ErrorDescription)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return envelope.Result, nil
}

// GetDeal fetches one deal with all its fields.
func (c *Client) GetDeal(ctx context.Context, dealID string) (*supply.Deal, error) {
	params := url.Values{}
	params.Set("id", dealID)

	var fields map[string]any
	raw, err := c.call(ctx, "crm.deal.get", params, &fields)
	if err != nil {
		return nil, err
	}

	deal := &supply.Deal{
		ID:     dealID,
		Fields: fields,
		Raw:    raw,
	}
	if title, ok := fields["TITLE"].(string); ok {
		deal.Title = title
	}
	if stage, ok := fields["STAGE_ID"].(string); ok {
		deal.StageID = stage
	}
	return deal, nil
}

type dealListItem struct {
	ID json.Number `json:"ID"`
}

// ListDealIDs returns ids of deals sitting in the stage, oldest first.
// Bitrix pages crm.deal.list at 50 rows; the start cursor walks pages.
func (c *Client) ListDealIDs(ctx context.Context, stageID string) ([]string, error) {
	var ids []string
	start := 0

	for {
		params := url.Values{}
		params.Set("filter[STAGE_ID]", stageID)
		params.Set("select[]", "ID")
		params.Set("order[ID]", "ASC")
		params.Set("start", fmt.Sprintf("%d", start))

		var items []dealListItem
		if _, err := c.call(ctx, "crm.deal.list", params, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			ids = append(ids, item.ID.String())
		}

		if len(items) < 50 {
			return ids, nil
		}
		start += len(items)
	}
}

type timelineComment struct {
	ID      json.Number `json:"ID"`
	Comment string      `json:"COMMENT"`
	Files   []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"FILES"`
}

// ListComments fetches the deal's timeline comments, oldest first.
func (c *Client) ListComments(ctx context.Context, dealID string) ([]supply.Comment, error) {
	params := url.Values{}
	params.Set("filter[ENTITY_ID]", dealID)
	params.Set("filter[ENTITY_TYPE]", dealEntityType)
	params.Set("order[ID]", "ASC")

	var items []timelineComment
	raw, err := c.call(ctx, "crm.timeline.comment.list", params, &items)
	if err != nil {
		return nil, err
	}

	// Raw payloads are archived per comment for reprocessing
	var rawItems []json.RawMessage
	_ = json.Unmarshal(raw, &rawItems)

	comments := make([]supply.Comment, 0, len(items))
	for i, item := range items {
		comment := supply.Comment{
			ID:   item.ID.String(),
			Text: item.Comment,
		}
		if i < len(rawItems) {
			comment.Raw = rawItems[i]
		}
		for _, f := range item.Files {
			comment.Files = append(comment.Files, supply.CommentFile{
				ID:   f.ID.String(),
				Name: f.Name,
			})
		}
		comments = append(comments, comment)
	}
	return comments, nil
}

type diskFile struct {
	DownloadURL string `json:"DOWNLOAD_URL"`
}

// DownloadFile resolves a disk file id to its download URL and fetches
// the content.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	params := url.Values{}
	params.Set("id", fileID)

	var file diskFile
	if _, err := c.call(ctx, "disk.file.get", params, &file); err != nil {
		return nil, err
	}
	if file.DownloadURL == "" {
		return nil, fmt.Errorf("file %s has no download url", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file %s: status %d", fileID, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
