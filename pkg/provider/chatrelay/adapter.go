// Package chatrelay implements the platform adapter for chat-style
// providers: OAuth bearer credentials, opaque cursor pagination, and an
// "outgoing" flag marking message direction.
//
// Token refresh goes through the rate-limit coordinator so that concurrent
// syncs and sends against the same account trigger at most one refresh call
// upstream; peers reuse the cached token until its expiry cooldown.
package chatrelay

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
	"unibox-backend/pkg/provider"
	"unibox-backend/pkg/ratelimit"

	"golang.org/x/oauth2"
)

const ProviderName = "chatrelay"

// expirySkew keeps us from presenting a token that dies mid-request
const expirySkew = 30 * time.Second

type Adapter struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	coordinator  *ratelimit.Coordinator
}

func NewAdapter(clientID, clientSecret string, httpClient *http.Client, coordinator *ratelimit.Coordinator) *Adapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		coordinator:  coordinator,
	}
}

func (a *Adapter) Provider() string { return ProviderName }

type credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	APIBase      string    `json:"api_base"`
}

type rawMessage struct {
	ID        string   `json:"id"`
	Author    string   `json:"author"`
	Recipient string   `json:"recipient"`
	Text      string   `json:"text"`
	Media     []string `json:"media"`
	Timestamp string   `json:"ts"`
	Outgoing  bool     `json:"outgoing"`
	State     string   `json:"state"`
}

type fetchResponse struct {
	Messages   []json.RawMessage `json:"messages"`
	NextCursor string            `json:"next_cursor"`
}

func (a *Adapter) FetchMessages(ctx context.Context, account *accountdomain.Account, req provider.FetchRequest) (*provider.FetchResult, error) {
	cred, err := parseCredential(account)
	if err != nil {
		return nil, err
	}
	token, err := a.bearerToken(ctx, account, cred)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/messages?limit=%d", cred.APIBase, req.PageSize)
	if req.Cursor != "" {
		url += "&cursor=" + req.Cursor
	} else if req.Since != nil {
		url += "&since=" + req.Since.UTC().Format(time.RFC3339)
	}

	body, err := a.doRequest(ctx, token, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var resp fetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: chatrelay: malformed list response: %v", provider.ErrProviderUnavailable, err)
	}

	result := &provider.FetchResult{NextCursor: resp.NextCursor}
	for _, raw := range resp.Messages {
		msg, err := a.Normalize(raw, account)
		if err != nil {
			return nil, fmt.Errorf("chatrelay: normalize fetched message: %w", err)
		}
		result.Messages = append(result.Messages, msg)
	}
	return result, nil
}

type sendRequest struct {
	To    string   `json:"to"`
	Text  string   `json:"text"`
	Media []string `json:"media,omitempty"`
}

type sendResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func (a *Adapter) SendMessage(ctx context.Context, account *accountdomain.Account, to, body string, media []string) (*provider.MessageRef, error) {
	cred, err := parseCredential(account)
	if err != nil {
		return nil, err
	}
	token, err := a.bearerToken(ctx, account, cred)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(sendRequest{To: to, Text: body, Media: media})
	if err != nil {
		return nil, err
	}

	respBody, err := a.doRequest(ctx, token, http.MethodPost, cred.APIBase+"/v1/messages", payload)
	if err != nil {
		return nil, err
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: chatrelay: malformed send response: %v", provider.ErrProviderUnavailable, err)
	}

	return &provider.MessageRef{
		ProviderMessageID: resp.ID,
		Status:            mapState(resp.State),
	}, nil
}

func (a *Adapter) Normalize(raw json.RawMessage, account *accountdomain.Account) (*messagedomain.Message, error) {
	var rm rawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, fmt.Errorf("chatrelay: unmarshal raw message: %w", err)
	}
	if rm.ID == "" {
		return nil, fmt.Errorf("chatrelay: raw message missing id")
	}

	sentAt, err := time.Parse(time.RFC3339, rm.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("chatrelay: parse ts on message %s: %w", rm.ID, err)
	}

	// The provider marks direction explicitly via the outgoing flag
	direction := messagedomain.DirectionInbound
	if rm.Outgoing {
		direction = messagedomain.DirectionOutbound
	}

	return &messagedomain.Message{
		Provider:          ProviderName,
		ProviderMessageID: rm.ID,
		AccountID:         account.ID,
		UserID:            account.UserID,
		Direction:         direction,
		FromAddress:       rm.Author,
		ToAddress:         rm.Recipient,
		Body:              rm.Text,
		MediaURLs:         rm.Media,
		SentAt:            sentAt,
		Status:            mapState(rm.State),
	}, nil
}

type meResponse struct {
	ID string `json:"id"`
}

func (a *Adapter) ListIdentifiers(ctx context.Context, account *accountdomain.Account) ([]string, error) {
	cred, err := parseCredential(account)
	if err != nil {
		return nil, err
	}
	token, err := a.bearerToken(ctx, account, cred)
	if err != nil {
		return nil, err
	}

	body, err := a.doRequest(ctx, token, http.MethodGet, cred.APIBase+"/v1/me", nil)
	if err != nil {
		return nil, err
	}

	var resp meResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: chatrelay: malformed me response: %v", provider.ErrProviderUnavailable, err)
	}
	return []string{resp.ID}, nil
}

func (a *Adapter) VerifyIdentifier(ctx context.Context, account *accountdomain.Account) error {
	ids, err := a.ListIdentifiers(ctx, account)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == account.ExternalID {
			return nil
		}
	}
	return &provider.ValidationError{
		Provider:  ProviderName,
		Reason:    fmt.Sprintf("identifier %s does not belong to this credential", account.ExternalID),
		Available: ids,
	}
}

// bearerToken returns a usable access token, refreshing through the
// coordinator when the stored one has expired. Only one refresh per account
// runs at a time; concurrent callers wait and reuse the cached result.
func (a *Adapter) bearerToken(ctx context.Context, account *accountdomain.Account, cred *credential) (string, error) {
	if cred.AccessToken != "" && time.Until(cred.Expiry) > expirySkew {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", &provider.AuthError{Provider: ProviderName, Reason: "access token expired and no refresh token present"}
	}

	key := "chatrelay:token:" + account.ID
	cached, shouldCall, err := a.coordinator.Acquire(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: chatrelay: token refresh wait: %v", provider.ErrProviderUnavailable, err)
	}
	if !shouldCall {
		if token, ok := cached.(string); ok && token != "" {
			return token, nil
		}
		return "", fmt.Errorf("%w: chatrelay: cached token unusable", provider.ErrProviderUnavailable)
	}

	conf := &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cred.APIBase + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	token, err := src.Token()
	if err != nil {
		a.coordinator.ReleaseErr(key)
		if re, ok := err.(*oauth2.RetrieveError); ok && re.Response != nil {
			if re.Response.StatusCode == http.StatusUnauthorized || re.Response.StatusCode == http.StatusBadRequest {
				return "", &provider.AuthError{Provider: ProviderName, Reason: "refresh token rejected"}
			}
		}
		return "", fmt.Errorf("%w: chatrelay: token refresh: %v", provider.ErrProviderUnavailable, err)
	}

	ttl := time.Until(token.Expiry) - expirySkew
	a.coordinator.Release(key, token.AccessToken, ttl)
	return token.AccessToken, nil
}

func (a *Adapter) doRequest(ctx context.Context, bearer, method, url string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: chatrelay: %v", provider.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: chatrelay: read response: %v", provider.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.AuthError{Provider: ProviderName, Reason: http.StatusText(resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 60
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				retryAfter = secs
			}
		}
		return nil, &provider.RateLimitError{Provider: ProviderName, RetryAfterSeconds: retryAfter}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
			e.Error = "request rejected"
		}
		return nil, &provider.ValidationError{Provider: ProviderName, Reason: e.Error}
	default:
		return nil, fmt.Errorf("%w: chatrelay: status %d", provider.ErrProviderUnavailable, resp.StatusCode)
	}
}

func mapState(state string) messagedomain.DeliveryStatus {
	switch state {
	case "pending":
		return messagedomain.StatusSending
	case "sent":
		return messagedomain.StatusSent
	case "delivered":
		return messagedomain.StatusDelivered
	case "read":
		return messagedomain.StatusRead
	case "failed":
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
	if cred.APIBase == "" {
		return nil, &provider.AuthError{Provider: ProviderName, Reason: "credential missing api_base"}
	}
	cred.APIBase = strings.TrimSuffix(cred.APIBase, "/")
	return &cred, nil
}
