package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountdomain "unibox-backend/internal/account/domain"
	messagedomain "unibox-backend/internal/message/domain"
	messageusecase "unibox-backend/internal/message/usecase"
	"unibox-backend/pkg/provider"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*accountdomain.Account
}

func newFakeAccountRepo(accounts ...*accountdomain.Account) *fakeAccountRepo {
	f := &fakeAccountRepo{accounts: make(map[string]*accountdomain.Account)}
	for _, a := range accounts {
		copied := *a
		f.accounts[a.ID] = &copied
	}
	return f
}

func (f *fakeAccountRepo) Create(account *accountdomain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *account
	f.accounts[account.ID] = &copied
	return nil
}

func (f *fakeAccountRepo) FindByID(id string) (*accountdomain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeAccountRepo) FindByUser(userID string) ([]*accountdomain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*accountdomain.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) FindByProviderExternalID(provider, externalID string) (*accountdomain.Account, error) {
	return nil, nil
}

func (f *fakeAccountRepo) CountByOrg(orgID string) (int64, error) { return 0, nil }

func (f *fakeAccountRepo) ListUserIDs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, a := range f.accounts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			out = append(out, a.UserID)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) UpdateStatus(id string, status accountdomain.AccountStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[id]; ok {
		a.Status = status
	}
	return nil
}

func (f *fakeAccountRepo) UpdateCheckpoint(id string, lastSyncAt time.Time, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.accounts[id]; ok {
		ts := lastSyncAt
		a.LastSyncAt = &ts
		a.SyncCursor = cursor
	}
	return nil
}

func (f *fakeAccountRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

func (f *fakeAccountRepo) checkpoint(id string) (*time.Time, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[id]
	return a.LastSyncAt, a.SyncCursor
}

func (f *fakeAccountRepo) status(id string) accountdomain.AccountStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id].Status
}

// fetchStep scripts one FetchMessages response
type fetchStep struct {
	result *provider.FetchResult
	err    error
}

type scriptedAdapter struct {
	mu      sync.Mutex
	name    string
	steps   []fetchStep
	reqs    []provider.FetchRequest
	block   chan struct{} // when set, FetchMessages waits on it once
	blocked chan struct{}
}

func (s *scriptedAdapter) Provider() string { return s.name }

func (s *scriptedAdapter) FetchMessages(ctx context.Context, account *accountdomain.Account, req provider.FetchRequest) (*provider.FetchResult, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	var step fetchStep
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	} else {
		step = fetchStep{result: &provider.FetchResult{}}
	}
	block := s.block
	blocked := s.blocked
	s.block = nil
	s.mu.Unlock()

	if block != nil {
		if blocked != nil {
			close(blocked)
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return step.result, step.err
}

func (s *scriptedAdapter) SendMessage(ctx context.Context, account *accountdomain.Account, to, body string, media []string) (*provider.MessageRef, error) {
	return &provider.MessageRef{ProviderMessageID: "x"}, nil
}

func (s *scriptedAdapter) Normalize(raw json.RawMessage, account *accountdomain.Account) (*messagedomain.Message, error) {
	return nil, nil
}

func (s *scriptedAdapter) VerifyIdentifier(ctx context.Context, account *accountdomain.Account) error {
	return nil
}

func (s *scriptedAdapter) ListIdentifiers(ctx context.Context, account *accountdomain.Account) ([]string, error) {
	return nil, nil
}

// stubIngestor stands in for the full message pipeline; it counts every
// message as processed unless told to fail
type stubIngestor struct {
	mu       sync.Mutex
	batches  [][]*messagedomain.Message
	failNext bool
}

func (s *stubIngestor) IngestBatch(ctx context.Context, account *accountdomain.Account, messages []*messagedomain.Message) *messageusecase.BatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, messages)
	if s.failNext {
		s.failNext = false
		return &messageusecase.BatchResult{Failed: len(messages)}
	}
	return &messageusecase.BatchResult{Processed: len(messages)}
}

func (s *stubIngestor) IngestWebhook(ctx context.Context, providerName string, payload []byte) error {
	return nil
}

func (s *stubIngestor) SendMessage(ctx context.Context, userID, accountID, to, body string, media []string) (*messagedomain.Message, error) {
	return nil, nil
}

func (s *stubIngestor) GetConversations(userID string, limit, offset int) ([]*messagedomain.Conversation, int64, error) {
	return nil, 0, nil
}

func (s *stubIngestor) GetConversationMessages(userID, conversationID string, limit, offset int) ([]*messagedomain.Message, int64, error) {
	return nil, 0, nil
}

func (s *stubIngestor) DeleteMessage(userID, messageID string) error { return nil }

func (s *stubIngestor) SetEventService(svc messageusecase.EventService) {}

type stubQuota struct {
	active bool
}

func (q *stubQuota) CheckConnectionLimit(orgID string) (bool, error)    { return true, nil }
func (q *stubQuota) RecordStorageDelta(orgID string, delta int64) error { return nil }
func (q *stubQuota) CheckActive(orgID string) (bool, error)             { return q.active, nil }
func (q *stubQuota) ConsumeAICredits(orgID string, credits int64) error { return nil }

func syncMessage(pmid string, at time.Time) *messagedomain.Message {
	return &messagedomain.Message{
		Provider:          "smsgate",
		ProviderMessageID: pmid,
		Direction:         messagedomain.DirectionInbound,
		FromAddress:       "+15557654321",
		ToAddress:         "+15551234567",
		SentAt:            at,
		Status:            messagedomain.StatusDelivered,
	}
}

type syncFixture struct {
	uc       SyncUsecase
	accounts *fakeAccountRepo
	adapter  *scriptedAdapter
	ingestor *stubIngestor
	quota    *stubQuota
}

func newSyncFixture(t *testing.T, accounts ...*accountdomain.Account) *syncFixture {
	t.Helper()

	f := &syncFixture{
		accounts: newFakeAccountRepo(accounts...),
		adapter:  &scriptedAdapter{name: "smsgate"},
		ingestor: &stubIngestor{},
		quota:    &stubQuota{active: true},
	}
	registry := provider.NewRegistry()
	registry.Register(f.adapter)

	f.uc = NewSyncUsecase(f.accounts, f.ingestor, f.quota, registry, NewRunRegistry(), 50, time.Second, 2)
	return f
}

func connectedAccount(id, userID string) *accountdomain.Account {
	return &accountdomain.Account{
		ID:       id,
		UserID:   userID,
		OrgID:    "org-1",
		Provider: "smsgate",
		Status:   accountdomain.StatusConnected,
	}
}

func TestTriggerSyncIngestsPagesAndAdvancesCheckpoint(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"))
	f.adapter.steps = []fetchStep{
		{result: &provider.FetchResult{
			Messages:   []*messagedomain.Message{syncMessage("SM1", baseTime), syncMessage("SM2", baseTime.Add(time.Minute))},
			NextCursor: "50",
		}},
		{result: &provider.FetchResult{
			Messages: []*messagedomain.Message{syncMessage("SM3", baseTime.Add(2 * time.Minute))},
		}},
	}

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.False(t, summary.AlreadyRunning)
	assert.Empty(t, summary.AccountErrors)

	lastSync, cursor := f.accounts.checkpoint("acct-1")
	require.NotNil(t, lastSync)
	assert.Equal(t, baseTime.Add(2*time.Minute), *lastSync, "watermark is the newest ingested timestamp")
	assert.Empty(t, cursor, "exhausted backlog clears the cursor")

	// Second page was requested with the first page's cursor
	require.Len(t, f.adapter.reqs, 2)
	assert.Equal(t, "50", f.adapter.reqs[1].Cursor)
}

func TestConcurrentTriggersCollapseIntoOneRun(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"))
	release := make(chan struct{})
	blocked := make(chan struct{})
	f.adapter.block = release
	f.adapter.blocked = blocked

	done := make(chan *RunSummary)
	go func() {
		summary, _ := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
		done <- summary
	}()

	<-blocked
	second, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)
	assert.True(t, second.AlreadyRunning, "a second trigger observes the in-flight run")

	close(release)
	first := <-done
	assert.False(t, first.AlreadyRunning)
}

func TestRateLimitedPageIngestsAndStops(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"))
	f.adapter.steps = []fetchStep{
		{result: &provider.FetchResult{
			Messages:          []*messagedomain.Message{syncMessage("SM1", baseTime)},
			NextCursor:        "50",
			RateLimited:       true,
			RetryAfterSeconds: 90,
		}},
	}

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed, "the cut-short page still ingests")
	assert.True(t, summary.RateLimited)
	assert.Equal(t, 90, summary.RetryAfterSeconds)

	_, cursor := f.accounts.checkpoint("acct-1")
	assert.Equal(t, "50", cursor, "the next run resumes where the cooldown hit")
	require.Len(t, f.adapter.reqs, 1, "no further pages after the rate limit")
}

func TestRateLimitErrorIsNotFatal(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"))
	f.adapter.steps = []fetchStep{
		{err: &provider.RateLimitError{Provider: "smsgate", RetryAfterSeconds: 45}},
	}

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)

	assert.True(t, summary.RateLimited)
	assert.Equal(t, 45, summary.RetryAfterSeconds)
	assert.Empty(t, summary.AccountErrors)
	assert.Equal(t, accountdomain.StatusConnected, f.accounts.status("acct-1"))
}

func TestAuthErrorMarksAccountErrored(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"))
	f.adapter.steps = []fetchStep{
		{err: &provider.AuthError{Provider: "smsgate", Reason: "token revoked"}},
	}

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)

	assert.Contains(t, summary.AccountErrors, "acct-1")
	assert.Equal(t, accountdomain.StatusError, f.accounts.status("acct-1"))
}

func TestFailedIngestionLeavesCheckpointUntouched(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"))
	f.ingestor.failNext = true
	f.adapter.steps = []fetchStep{
		{result: &provider.FetchResult{
			Messages:   []*messagedomain.Message{syncMessage("SM1", baseTime)},
			NextCursor: "50",
		}},
	}

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	lastSync, cursor := f.accounts.checkpoint("acct-1")
	assert.Nil(t, lastSync, "a failed batch must not advance the watermark")
	assert.Empty(t, cursor)
}

func TestInactiveOrganizationIsSkippedNotErrored(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"))
	f.quota.active = false

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	assert.Empty(t, summary.AccountErrors)
	assert.Empty(t, f.adapter.reqs, "inactive orgs never hit the provider")
	assert.Equal(t, accountdomain.StatusConnected, f.accounts.status("acct-1"))
}

func TestDisconnectedAccountIsSkipped(t *testing.T) {
	account := connectedAccount("acct-1", "user-1")
	account.Status = accountdomain.StatusDisconnected
	f := newSyncFixture(t, account)

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)
	assert.Empty(t, f.adapter.reqs)
	assert.Equal(t, 0, summary.Processed)
}

func TestAccountFilterSyncsOnlyThatAccount(t *testing.T) {
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"), connectedAccount("acct-2", "user-1"))
	f.adapter.steps = []fetchStep{
		{result: &provider.FetchResult{Messages: []*messagedomain.Message{syncMessage("SM1", baseTime)}}},
	}

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{AccountID: "acct-2"})
	require.NoError(t, err)

	assert.Len(t, f.adapter.reqs, 1)
	assert.Equal(t, 1, summary.Processed)

	untouched, _ := f.accounts.checkpoint("acct-1")
	assert.Nil(t, untouched)
}

func TestProviderFilterSkipsOtherProviders(t *testing.T) {
	other := connectedAccount("acct-2", "user-1")
	other.Provider = "mailbridge"
	f := newSyncFixture(t, connectedAccount("acct-1", "user-1"), other)
	f.adapter.steps = []fetchStep{
		{result: &provider.FetchResult{Messages: []*messagedomain.Message{syncMessage("SM1", baseTime)}}},
	}

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{Provider: "smsgate"})
	require.NoError(t, err)

	assert.Len(t, f.adapter.reqs, 1)
	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, summary.AccountErrors)
}

func TestErroredAccountSkippedByRegularRuns(t *testing.T) {
	account := connectedAccount("acct-1", "user-1")
	account.Status = accountdomain.StatusError
	f := newSyncFixture(t, account)

	summary, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)
	assert.Empty(t, f.adapter.reqs, "a broken credential is not retried until targeted")
	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, accountdomain.StatusError, f.accounts.status("acct-1"))
}

func TestTargetedRetryRestoresErroredAccount(t *testing.T) {
	account := connectedAccount("acct-1", "user-1")
	account.Status = accountdomain.StatusError
	f := newSyncFixture(t, account)
	f.adapter.steps = []fetchStep{
		{result: &provider.FetchResult{Messages: []*messagedomain.Message{syncMessage("SM1", baseTime)}}},
	}

	_, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Equal(t, accountdomain.StatusConnected, f.accounts.status("acct-1"))
}

func TestFirstFetchUsesPersistedCheckpoint(t *testing.T) {
	checkpoint := baseTime.Add(-time.Hour)
	account := connectedAccount("acct-1", "user-1")
	account.LastSyncAt = &checkpoint
	account.SyncCursor = "120"
	f := newSyncFixture(t, account)

	_, err := f.uc.TriggerSync(context.Background(), "user-1", SyncFilter{})
	require.NoError(t, err)

	require.Len(t, f.adapter.reqs, 1)
	require.NotNil(t, f.adapter.reqs[0].Since)
	assert.Equal(t, checkpoint, *f.adapter.reqs[0].Since)
	assert.Equal(t, "120", f.adapter.reqs[0].Cursor)
}

func TestSyncAllSweepsEveryUser(t *testing.T) {
	f := newSyncFixture(t,
		connectedAccount("acct-1", "user-1"),
		connectedAccount("acct-2", "user-2"),
		connectedAccount("acct-3", "user-3"),
	)

	f.uc.SyncAll(context.Background(), SyncFilter{})

	assert.Len(t, f.adapter.reqs, 3, "each user's account fetched once")
}
