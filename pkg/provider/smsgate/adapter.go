// Package smsgate implements the platform adapter for SMS-style providers:
// static API-key auth, E.164 addresses, offset pagination, and explicit
// direction flags on every message.
package smsgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	accountdomain "unibox-backend/internal/account/domain"
	messagedomain "unibox-backend/internal/message/domain"
	"unibox-backend/pkg/address"
	"unibox-backend/pkg/provider"
)

const ProviderName = "smsgate"

type Adapter struct {
	httpClient *http.Client
}

func NewAdapter(httpClient *http.Client) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{httpClient: httpClient}
}

func (a *Adapter) Provider() string { return ProviderName }

// credential is the provider-ready blob handed over by the credential store
type credential struct {
	APIKey  string `json:"api_key"`
	APIBase string `json:"api_base"`
}

// rawMessage mirrors the provider's wire format for a single SMS
type rawMessage struct {
	SID       string   `json:"sid"`
	Direction string   `json:"direction"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls"`
	Status    string   `json:"status"`
	DateSent  string   `json:"date_sent"`
}

type fetchResponse struct {
	Messages    []json.RawMessage `json:"messages"`
	RateLimited bool              `json:"rate_limited"`
	RetryAfter  int               `json:"retry_after"`
}

func (a *Adapter) FetchMessages(ctx context.Context, account *accountdomain.Account, req provider.FetchRequest) (*provider.FetchResult, error) {
	cred, err := parseCredential(account)
	if err != nil {
		return nil, err
	}

	offset := 0
	if req.Cursor != "" {
		offset, err = strconv.Atoi(req.Cursor)
		if err != nil {
			return nil, &provider.ValidationError{Provider: ProviderName, Reason: "malformed cursor: " + req.Cursor}
		}
	}

	url := fmt.Sprintf("%s/v2/messages?limit=%d&offset=%d", cred.APIBase, req.PageSize, offset)
	if req.Since != nil {
		url += "&since=" + req.Since.UTC().Format(time.RFC3339)
	}

	body, err := a.doRequest(ctx, cred, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var resp fetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: smsgate: malformed list response: %v", provider.ErrProviderUnavailable, err)
	}

	result := &provider.FetchResult{
		RateLimited:       resp.RateLimited,
		RetryAfterSeconds: resp.RetryAfter,
	}
	for _, raw := range resp.Messages {
		msg, err := a.Normalize(raw, account)
		if err != nil {
			return nil, fmt.Errorf("smsgate: normalize fetched message: %w", err)
		}
		result.Messages = append(result.Messages, msg)
	}
	if len(resp.Messages) >= req.PageSize && req.PageSize > 0 {
		result.NextCursor = strconv.Itoa(offset + len(resp.Messages))
	}
	return result, nil
}

type sendRequest struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Body      string   `json:"body"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

type sendResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (a *Adapter) SendMessage(ctx context.Context, account *accountdomain.Account, to, body string, media []string) (*provider.MessageRef, error) {
	cred, err := parseCredential(account)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(sendRequest{From: account.ExternalID, To: to, Body: body, MediaURLs: media})
	if err != nil {
		return nil, err
	}

	respBody, err := a.doRequest(ctx, cred, http.MethodPost, cred.APIBase+"/v2/messages", payload)
	if err != nil {
		return nil, err
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: smsgate: malformed send response: %v", provider.ErrProviderUnavailable, err)
	}

	return &provider.MessageRef{
		ProviderMessageID: resp.SID,
		Status:            mapStatus(resp.Status),
	}, nil
}

// Normalize converts a provider SMS payload to the canonical model. Pure:
// direction comes from the provider's own direction field and the SID is
// carried over verbatim as the dedup key.
func (a *Adapter) Normalize(raw json.RawMessage, account *accountdomain.Account) (*messagedomain.Message, error) {
	var rm rawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, fmt.Errorf("smsgate: unmarshal raw message: %w", err)
	}
	if rm.SID == "" {
		return nil, fmt.Errorf("smsgate: raw message missing sid")
	}

	var direction messagedomain.Direction
	switch {
	case rm.Direction == "inbound":
		direction = messagedomain.DirectionInbound
	case strings.HasPrefix(rm.Direction, "outbound"):
		direction = messagedomain.DirectionOutbound
	default:
		return nil, fmt.Errorf("smsgate: unknown direction %q on message %s", rm.Direction, rm.SID)
	}

	sentAt, err := time.Parse(time.RFC3339, rm.DateSent)
	if err != nil {
		return nil, fmt.Errorf("smsgate: parse date_sent on message %s: %w", rm.SID, err)
	}

	return &messagedomain.Message{
		Provider:          ProviderName,
		ProviderMessageID: rm.SID,
		AccountID:         account.ID,
		UserID:            account.UserID,
		Direction:         direction,
		FromAddress:       rm.From,
		ToAddress:         rm.To,
		Body:              rm.Body,
		MediaURLs:         rm.MediaURLs,
		SentAt:            sentAt,
		Status:            mapStatus(rm.Status),
	}, nil
}

type numbersResponse struct {
	Numbers []struct {
		PhoneNumber string `json:"phone_number"`
	} `json:"numbers"`
}

func (a *Adapter) ListIdentifiers(ctx context.Context, account *accountdomain.Account) ([]string, error) {
	cred, err := parseCredential(account)
	if err != nil {
		return nil, err
	}

	body, err := a.doRequest(ctx, cred, http.MethodGet, cred.APIBase+"/v2/numbers", nil)
	if err != nil {
		return nil, err
	}

	var resp numbersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: smsgate: malformed numbers response: %v", provider.ErrProviderUnavailable, err)
	}

	numbers := make([]string, 0, len(resp.Numbers))
	for _, n := range resp.Numbers {
		numbers = append(numbers, n.PhoneNumber)
	}
	return numbers, nil
}

func (a *Adapter) VerifyIdentifier(ctx context.Context, account *accountdomain.Account) error {
	numbers, err := a.ListIdentifiers(ctx, account)
	if err != nil {
		return err
	}
	if !address.Matches(address.ForProvider(ProviderName), account.ExternalID, numbers) {
		return &provider.ValidationError{
			Provider:  ProviderName,
			Reason:    fmt.Sprintf("number %s is not provisioned on this account", account.ExternalID),
			Available: numbers,
		}
	}
	return nil
}

func (a *Adapter) doRequest(ctx context.Context, cred *credential, method, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-API-Key", cred.APIKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: smsgate: %v", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: smsgate: read response: %v", provider.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.AuthError{Provider: ProviderName, Reason: http.StatusText(resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.RateLimitError{Provider: ProviderName, RetryAfterSeconds: retryAfterSeconds(resp)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, parseValidationError(body)
	default:
		return nil, fmt.Errorf("%w: smsgate: status %d", provider.ErrProviderUnavailable, resp.StatusCode)
	}
}

func parseValidationError(body []byte) error {
	var e struct {
		Error     string   `json:"error"`
		Available []string `json:"available,omitempty"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		e.Error = "request rejected"
	}
	return &provider.ValidationError{Provider: ProviderName, Reason: e.Error, Available: e.Available}
}

func retryAfterSeconds(resp *http.Response) int {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return secs
		}
	}
	return 60
}

func mapStatus(providerStatus string) messagedomain.DeliveryStatus {
	switch providerStatus {
	case "queued", "sending", "accepted":
		return messagedomain.StatusSending
	case "sent":
		return messagedomain.StatusSent
	case "delivered":
		return messagedomain.StatusDelivered
	case "read":
		return messagedomain.StatusRead
	case "failed", "undelivered":
		return messagedomain.StatusFailed
	default:
		return messagedomain.StatusSent
	}
}

func parseCredential(account *accountdomain.Account) (*credential, error) {
	var cred credential
	if err := json.Unmarshal(account.Credential, &cred); err != nil {
		return nil, &provider.AuthError{Provider: ProviderName, Reason: "malformed credential blob"}
	}
	if cred.APIKey == "" || cred.APIBase == "" {
		return nil, &provider.AuthError{Provider: ProviderName, Reason: "credential missing api_key or api_base"}
	}
	cred.APIBase = strings.TrimSuffix(cred.APIBase, "/")
	return &cred, nil
}
