// Package mailbridge implements the platform adapter for plain email
// accounts over IMAP. Pagination is a date window anchored on the sync
// checkpoint plus a numeric offset into the matching messages, mapped onto
// the generic since/cursor contract.
package mailbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	accountdomain "unibox-backend/internal/account/domain"
	messagedomain "unibox-backend/internal/message/domain"
	"unibox-backend/pkg/address"
	"unibox-backend/pkg/provider"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

const ProviderName = "mailbridge"

// defaultWindow bounds the first sync of an account; older mail is not
// backfilled beyond what one window exposes
const defaultWindow = 30 * 24 * time.Hour

type Adapter struct {
	dialTimeout time.Duration
}

func NewAdapter() *Adapter {
	return &Adapter{dialTimeout: 30 * time.Second}
}

func (a *Adapter) Provider() string { return ProviderName }

type credential struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// rawEmail is the normalized-input form for one mail, produced both by the
// IMAP fetch below and by push/webhook payloads for email providers
type rawEmail struct {
	MessageID string `json:"message_id"`
	Folder    string `json:"folder"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Date      string `json:"date"`
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

	c, err := a.connect(ctx, cred)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("%w: mailbridge: select inbox: %v", provider.ErrProviderUnavailable, err)
	}

	since := time.Now().Add(-defaultWindow)
	if req.Since != nil {
		since = *req.Since
	}
	criteria := imap.NewSearchCriteria()
	criteria.Since = since.UTC()

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: mailbridge: search: %v", provider.ErrProviderUnavailable, err)
	}

	result := &provider.FetchResult{}
	if offset >= len(uids) {
		return result, nil
	}
	end := offset + req.PageSize
	if req.PageSize <= 0 || end > len(uids) {
		end = len(uids)
	}
	page := uids[offset:end]

	seqset := new(imap.SeqSet)
	seqset.AddNum(page...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(page))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	for msg := range messages {
		raw, err := a.rawFromIMAP(msg, section)
		if err != nil {
			return nil, fmt.Errorf("mailbridge: read message: %w", err)
		}
		canonical, err := a.Normalize(raw, account)
		if err != nil {
			return nil, fmt.Errorf("mailbridge: normalize fetched message: %w", err)
		}
		result.Messages = append(result.Messages, canonical)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: mailbridge: fetch: %v", provider.ErrProviderUnavailable, err)
	}

	if end < len(uids) {
		result.NextCursor = strconv.Itoa(end)
	}
	return result, nil
}

// SendMessage is not part of the IMAP contract; outbound mail needs an SMTP
// relay the surrounding system does not provision for linked inboxes
func (a *Adapter) SendMessage(ctx context.Context, account *accountdomain.Account, to, body string, media []string) (*provider.MessageRef, error) {
	return nil, &provider.ValidationError{
		Provider: ProviderName,
		Reason:   "sending is not supported for imap accounts",
	}
}

func (a *Adapter) Normalize(raw json.RawMessage, account *accountdomain.Account) (*messagedomain.Message, error) {
	var rm rawEmail
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, fmt.Errorf("mailbridge: unmarshal raw message: %w", err)
	}
	if rm.MessageID == "" {
		return nil, fmt.Errorf("mailbridge: raw message missing message_id")
	}

	sentAt, err := time.Parse(time.RFC3339, rm.Date)
	if err != nil {
		return nil, fmt.Errorf("mailbridge: parse date on message %s: %w", rm.MessageID, err)
	}

	// Folder is the provider-native direction marker for mailboxes
	direction := messagedomain.DirectionInbound
	if strings.EqualFold(rm.Folder, "Sent") {
		direction = messagedomain.DirectionOutbound
	}

	body := rm.Body
	if rm.Subject != "" {
		body = rm.Subject + "\n\n" + rm.Body
	}

	return &messagedomain.Message{
		Provider:          ProviderName,
		ProviderMessageID: rm.MessageID,
		AccountID:         account.ID,
		UserID:            account.UserID,
		Direction:         direction,
		FromAddress:       rm.From,
		ToAddress:         rm.To,
		Body:              body,
		SentAt:            sentAt,
		Status:            messagedomain.StatusDelivered,
	}, nil
}

func (a *Adapter) ListIdentifiers(ctx context.Context, account *accountdomain.Account) ([]string, error) {
	cred, err := parseCredential(account)
	if err != nil {
		return nil, err
	}
	return []string{cred.Username}, nil
}

func (a *Adapter) VerifyIdentifier(ctx context.Context, account *accountdomain.Account) error {
	cred, err := parseCredential(account)
	if err != nil {
		return err
	}

	// Probe connectivity and credentials before committing the link
	c, err := a.connect(ctx, cred)
	if err != nil {
		return err
	}
	defer c.Logout()

	if !address.Matches(address.ForProvider(ProviderName), account.ExternalID, []string{cred.Username}) {
		return &provider.ValidationError{
			Provider:  ProviderName,
			Reason:    fmt.Sprintf("identifier %s does not match the mailbox login", account.ExternalID),
			Available: []string{cred.Username},
		}
	}
	return nil
}

func (a *Adapter) connect(ctx context.Context, cred *credential) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", cred.Host, cred.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: mailbridge: dial %s: %v", provider.ErrProviderUnavailable, addr, err)
	}
	c.Timeout = a.dialTimeout

	if err := c.Login(cred.Username, cred.Password); err != nil {
		c.Logout()
		return nil, &provider.AuthError{Provider: ProviderName, Reason: "imap login rejected"}
	}
	return c, nil
}

// rawFromIMAP flattens one fetched IMAP message into the rawEmail form
// consumed by Normalize
func (a *Adapter) rawFromIMAP(msg *imap.Message, section *imap.BodySectionName) (json.RawMessage, error) {
	if msg.Envelope == nil {
		return nil, fmt.Errorf("message %d has no envelope", msg.Uid)
	}

	rm := rawEmail{
		MessageID: msg.Envelope.MessageId,
		Folder:    "INBOX",
		Subject:   msg.Envelope.Subject,
		Date:      msg.Envelope.Date.UTC().Format(time.RFC3339),
	}
	if len(msg.Envelope.From) > 0 {
		rm.From = msg.Envelope.From[0].Address()
	}
	if len(msg.Envelope.To) > 0 {
		rm.To = msg.Envelope.To[0].Address()
	}

	if body := msg.GetBody(section); body != nil {
		rm.Body = readTextBody(body)
	}

	return json.Marshal(rm)
}

// readTextBody extracts the first text part of a MIME message; a read
// failure degrades to an empty body rather than failing the whole fetch
func readTextBody(r io.Reader) string {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if _, ok := part.Header.(*mail.InlineHeader); ok {
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return ""
			}
			return string(data)
		}
	}
}

func parseCredential(account *accountdomain.Account) (*credential, error) {
	var cred credential
	if err := json.Unmarshal(account.Credential, &cred); err != nil {
		return nil, &provider.AuthError{Provider: ProviderName, Reason: "malformed credential blob"}
	}
	if cred.Host == "" || cred.Username == "" || cred.Password == "" {
		return nil, &provider.AuthError{Provider: ProviderName, Reason: "credential missing host, username, or password"}
	}
	if cred.Port == 0 {
		cred.Port = 993
	}
	return &cred, nil
}
