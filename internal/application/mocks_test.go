package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/ericfisherdev/inboxrelay/internal/domain/model"
	"github.com/ericfisherdev/inboxrelay/internal/domain/port/driven"
)

// --- memStore: in-memory tenant/account/knowledge/product/activity store ---

type memStore struct {
	mu        sync.Mutex
	tenants   []model.Tenant
	accounts  map[string]*model.Account
	knowledge []model.KnowledgeEntry
	products  []model.Product
	logs      []model.ActivityLog

	tenantErr    error
	tokenErr     error
	knowledgeErr error
	productErr   error
	activityErr  error

	knowledgeCalls int
	lastTitles     []string
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*model.Account)}
}

func (s *memStore) addAccount(id string, role model.Role, credits *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = &model.Account{ID: id, Email: id + "@example.com", Role: role, Credits: credits}
}

func (s *memStore) addTenant(t model.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = append(s.tenants, t)
}

// snapshot returns a copy of the tenant with its account as read at lookup time.
func (s *memStore) snapshot(t model.Tenant) *model.Tenant {
	if a, ok := s.accounts[t.AccountID]; ok {
		copied := *a
		if a.Credits != nil {
			c := *a.Credits
			copied.Credits = &c
		}
		t.Account = &copied
	}
	return &t
}

func (s *memStore) GetByExternalID(_ context.Context, externalID string) (*model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tenantErr != nil {
		return nil, s.tenantErr
	}
	for _, t := range s.tenants {
		if t.ExternalID != "" && t.ExternalID == externalID {
			return s.snapshot(t), nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByWidgetKey(_ context.Context, key string) (*model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tenantErr != nil {
		return nil, s.tenantErr
	}
	for _, t := range s.tenants {
		if t.WidgetKey != "" && t.WidgetKey == key {
			copied := t
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListVerifyTokens(context.Context) ([]model.VerifyTokenRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	var rows []model.VerifyTokenRow
	for _, t := range s.tenants {
		if t.VerifyToken != "" {
			rows = append(rows, model.VerifyTokenRow{TenantID: t.ID, AccountID: t.AccountID, VerifyToken: t.VerifyToken})
		}
	}
	return rows, nil
}

func (s *memStore) ListAll(context.Context) ([]model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Tenant(nil), s.tenants...), nil
}

func (s *memStore) DecrementCredit(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.Credits == nil || *a.Credits <= 0 {
		return false, nil
	}
	*a.Credits--
	return true, nil
}

func (s *memStore) balance(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].Balance()
}

func (s *memStore) ListByAccount(_ context.Context, accountID string, titles []string) ([]model.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledgeCalls++
	s.lastTitles = titles
	if s.knowledgeErr != nil {
		return nil, s.knowledgeErr
	}
	var out []model.KnowledgeEntry
	for _, e := range s.knowledge {
		if e.AccountID != accountID {
			continue
		}
		if len(titles) > 0 && !contains(titles, e.Title) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *memStore) AddIfMissing(_ context.Context, entry model.KnowledgeEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.knowledgeErr != nil {
		return false, s.knowledgeErr
	}
	for _, e := range s.knowledge {
		if e.AccountID == entry.AccountID && e.Title == entry.Title {
			return false, nil
		}
	}
	entry.ID = int64(len(s.knowledge) + 1)
	s.knowledge = append(s.knowledge, entry)
	return true, nil
}

func (s *memStore) ListActive(_ context.Context, accountID string) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productErr != nil {
		return nil, s.productErr
	}
	var out []model.Product
	for _, p := range s.products {
		if p.AccountID == accountID && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) Append(_ context.Context, entry model.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activityErr != nil {
		return s.activityErr
	}
	s.logs = append(s.logs, entry)
	return nil
}

func (s *memStore) activity() []model.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ActivityLog(nil), s.logs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// --- fakeVault: "enc:<plain>" decrypts to <plain>; "enc:" alone is undecryptable ---

type fakeVault struct{}

func (fakeVault) Encrypt(plaintext string) string {
	if plaintext == "" {
		return ""
	}
	return "enc:" + plaintext
}

func (fakeVault) Decrypt(value string) string {
	return strings.TrimPrefix(value, "enc:")
}

func (fakeVault) Mask(value string) string { return "***" }

func (fakeVault) IsMasked(value string) bool { return strings.HasPrefix(value, "***") }

// --- fakeCompletion ---

type fakeCompletion struct {
	mu       sync.Mutex
	requests []driven.CompletionRequest
	reply    string
	err      error
	// hook runs inside Complete before returning; may block or panic.
	hook func(ctx context.Context) error
}

func (f *fakeCompletion) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return "", err
		}
	}
	if f.err != nil {
		return "", f.err
	}
	if f.reply == "" {
		return req.Fallback, nil
	}
	return f.reply, nil
}

func (f *fakeCompletion) calls() []driven.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driven.CompletionRequest(nil), f.requests...)
}

// --- fakeMessenger ---

type sentMessage struct {
	accessToken, recipientID, text string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMessenger) SendText(_ context.Context, accessToken, recipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{accessToken, recipientID, text})
	return nil
}

func (f *fakeMessenger) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

// --- recordingObserver ---

type recordingObserver struct {
	mu       sync.Mutex
	states   []string
	outcomes []driven.RunOutcome
}

func (o *recordingObserver) StartRun(ctx context.Context, _ model.Channel, _ string) (context.Context, driven.RunTrace) {
	return ctx, o
}

func (o *recordingObserver) Enter(state string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) End(outcome driven.RunOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

var errStore = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func credits(n int64) *int64 { return &n }
