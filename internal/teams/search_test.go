package teams

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/rma-service/internal/logger"
)

type fakeGraph struct {
	t          *testing.T
	srv        *httptest.Server
	token      string
	tokenFails bool
	tokenCalls int32
	chats      []map[string]any
	messages   map[string][]map[string]any
	failChat   string
	pagedChats bool
	slowChats  time.Duration
}

func newFakeGraph(t *testing.T, token string) *fakeGraph {
	f := &fakeGraph{t: t, token: token, messages: map[string][]map[string]any{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGraph) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/token" {
		atomic.AddInt32(&f.tokenCalls, 1)
		if f.tokenFails {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"` + f.token + `","token_type":"Bearer","expires_in":3600}`))
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/chats"):
		assert.Equal(f.t, "members", r.URL.Query().Get("$expand"))
		if f.pagedChats && r.URL.Query().Get("$skiptoken") == "" {
			writeJSON(w, map[string]any{
				"value":           f.chats[:1],
				"@odata.nextLink": f.srv.URL + path + "?$expand=members&$skiptoken=2",
			})
			return
		}
		if f.pagedChats {
			writeJSON(w, map[string]any{"value": f.chats[1:]})
			return
		}
		writeJSON(w, map[string]any{"value": f.chats})
	case strings.HasSuffix(path, "/messages"):
		parts := strings.Split(path, "/")
		chatID := parts[len(parts)-2]
		if f.slowChats > 0 {
			select {
			case <-time.After(f.slowChats):
			case <-r.Context().Done():
				return
			}
		}
		if chatID == f.failChat {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"value": f.messages[chatID]})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func msg(id, from, html string, at time.Time) map[string]any {
	return map[string]any{
		"id":              id,
		"messageType":     "message",
		"createdDateTime": at.UTC().Format(time.RFC3339),
		"from": map[string]any{"user": map[string]any{
			"displayName":       from,
			"userPrincipalName": strings.ToLower(from) + "@example.com",
		}},
		"body": map[string]any{"contentType": "html", "content": html},
	}
}

func seed(f *fakeGraph) {
	now := time.Now()
	f.chats = []map[string]any{
		{"id": "c1", "topic": "Warranty team", "chatType": "group"},
		{"id": "c2", "chatType": "oneOnOne", "members": []map[string]any{
			{"displayName": "Me", "roles": []string{"owner"}},
			{"displayName": "Bob", "roles": []string{"guest"}},
		}},
		{"id": "c3", "topic": "Broken chat"},
	}
	f.messages["c1"] = []map[string]any{
		msg("m2", "Alice", "<p>nothing to see</p>", now.Add(-2*time.Hour)),
		msg("m1", "Alice", "<p>Unit 5A12-34-5678 is back</p>", now.Add(-3*time.Hour)),
		msg("m0", "Alice", "<p>5A12345678 old thread</p>", now.AddDate(0, -8, 0)),
	}
	f.messages["c2"] = []map[string]any{
		msg("m3", "Bob", "<div>5a12345678 &amp; more</div>", now.Add(-1*time.Hour)),
	}
	f.failChat = "c3"
}

func newTestService(f *fakeGraph, configured bool) *Service {
	cfg := Config{GraphBaseURL: f.srv.URL, Timeout: 2 * time.Second, MonthsBack: 6}
	if configured {
		cfg.ClientID = "client"
		cfg.ClientSecret = "secret"
		cfg.TenantID = "tenant"
		cfg.TokenURL = f.srv.URL + "/token"
		cfg.SearchUserID = "u1"
	}
	return NewService(cfg, logger.Discard())
}

func TestUserSearch_FindsVariantsAcrossChats(t *testing.T) {
	f := newFakeGraph(t, "user-token")
	seed(f)
	svc := newTestService(f, false)

	out := svc.Search(context.Background(), []string{"5A12345678"}, UserCredential{Token: "user-token"})
	require.NotNil(t, out.Summary)
	assert.Equal(t, "Teams search performed with user authentication. Found 2 message(s) across 2 chat(s) for device IDs: 5A12345678", *out.Summary)
	require.Len(t, out.Results, 1)

	r := out.Results[0]
	assert.True(t, r.SearchPerformed)
	assert.Equal(t, 3, r.ChatsSearched)
	assert.Equal(t, 3, r.TotalChats)
	assert.Equal(t, 2, r.MatchingChats)
	assert.Equal(t, 2, r.TotalMessages)

	require.Len(t, r.Results, 2)
	assert.Equal(t, "Chat with Bob", r.Results[0].ChatTopic)
	assert.Equal(t, "oneOnOne", r.Results[0].ChatType)
	assert.Equal(t, "5a12345678 & more", r.Results[0].Messages[0].Content)
	assert.Equal(t, "bob@example.com", r.Results[0].Messages[0].FromEmail)
	assert.Equal(t, "Warranty team", r.Results[1].ChatTopic)
	assert.Equal(t, "m1", r.Results[1].Messages[0].ID)

	assert.Contains(t, r.Summary, "Found 2 message(s) mentioning device 5A12345678 across 2 chat(s).")
	assert.Contains(t, r.Summary, "Found in: Chat with Bob, Warranty team")
	assert.Contains(t, r.Summary, `Most recent: "5a12345678 & more..." - Bob`)
	assert.Contains(t, r.Summary, "Searched 3 of 3 accessible chats.")
}

func TestUserSearch_NoMatches(t *testing.T) {
	f := newFakeGraph(t, "user-token")
	seed(f)
	svc := newTestService(f, false)

	out := svc.Search(context.Background(), []string{"1234567890"}, UserCredential{Token: "user-token"})
	assert.Nil(t, out.Results)
	require.NotNil(t, out.Summary)
	assert.Equal(t, "Teams search performed with user authentication but no messages found for search terms: 1234567890", *out.Summary)
}

func TestUserSearch_RejectedToken(t *testing.T) {
	f := newFakeGraph(t, "user-token")
	seed(f)
	svc := newTestService(f, false)

	out := svc.Search(context.Background(), []string{"5A12345678", "1234567890"}, UserCredential{Token: "stale"})
	assert.Nil(t, out.Results)
	require.NotNil(t, out.Summary)
	assert.True(t, strings.HasPrefix(*out.Summary, "Teams search attempted but failed: "))
	assert.Contains(t, *out.Summary, "Microsoft Graph authentication failed")
}

func TestSearchDevice(t *testing.T) {
	f := newFakeGraph(t, "user-token")
	seed(f)
	f.pagedChats = true
	svc := newTestService(f, false)

	r := svc.SearchDevice(context.Background(), "5A12345678", "user-token")
	assert.True(t, r.SearchPerformed)
	assert.Equal(t, 3, r.TotalChats)
	assert.Equal(t, 2, r.MatchingChats)
}

func TestAppSearch_NotConfigured(t *testing.T) {
	f := newFakeGraph(t, "app-token")
	svc := newTestService(f, false)

	out := svc.Search(context.Background(), []string{"5A12345678"}, ServiceCredential{})
	assert.Nil(t, out.Results)
	require.NotNil(t, out.Summary)
	assert.Equal(t, SummaryNotConfigured, *out.Summary)
}

func TestAppSearch_OnlyReservedIDs(t *testing.T) {
	f := newFakeGraph(t, "app-token")
	seed(f)
	svc := newTestService(f, true)

	ids := []string{"1234567890", "5A12345678", "5A00000001"}
	out := svc.Search(context.Background(), ids, ServiceCredential{})
	require.Len(t, out.Results, 2)
	assert.Equal(t, "5A12345678", out.Results[0].DeviceID)
	assert.Equal(t, 2, out.Results[0].TotalMessages)
	assert.Equal(t, "5A00000001", out.Results[1].DeviceID)
	assert.Empty(t, out.Results[1].Results)
	require.NotNil(t, out.Summary)
	assert.Contains(t, *out.Summary, "\n\n---\n\n")
	assert.Contains(t, *out.Summary, "No Teams messages found for device 5A00000001. Searched 3 of 3 accessible chats.")

	// токен приложения кэшируется между поисками
	_ = svc.Search(context.Background(), ids, ServiceCredential{})
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.tokenCalls))
}

func TestAppSearch_NoReservedIDs(t *testing.T) {
	f := newFakeGraph(t, "app-token")
	svc := newTestService(f, true)

	out := svc.Search(context.Background(), []string{"1234567890"}, ServiceCredential{})
	assert.Nil(t, out.Results)
	require.NotNil(t, out.Summary)
	assert.Equal(t, "No 5A device IDs found to search in Teams", *out.Summary)
	assert.Zero(t, atomic.LoadInt32(&f.tokenCalls))
}

func TestAppSearch_TokenFailure(t *testing.T) {
	f := newFakeGraph(t, "app-token")
	f.tokenFails = true
	svc := newTestService(f, true)

	out := svc.Search(context.Background(), []string{"5A12345678"}, ServiceCredential{})
	require.Len(t, out.Results, 1)
	assert.False(t, out.Results[0].SearchPerformed)
	assert.Contains(t, out.Results[0].Error, "Microsoft Teams authentication failed")
	require.NotNil(t, out.Summary)
	assert.True(t, strings.HasPrefix(*out.Summary, "Teams search failed: "))
}

func TestAppSearch_DeadlineBoundsSlowChats(t *testing.T) {
	f := newFakeGraph(t, "app-token")
	seed(f)
	f.slowChats = 5 * time.Second

	cfg := Config{
		GraphBaseURL:   f.srv.URL,
		ClientID:       "client",
		ClientSecret:   "secret",
		TenantID:       "tenant",
		TokenURL:       f.srv.URL + "/token",
		SearchUserID:   "u1",
		Timeout:        10 * time.Second,
		SearchDeadline: 300 * time.Millisecond,
	}
	svc := NewService(cfg, logger.Discard())

	start := time.Now()
	out := svc.Search(context.Background(), []string{"5A12345678"}, ServiceCredential{})
	assert.Less(t, time.Since(start), 3*time.Second)

	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].SearchPerformed)
	assert.Equal(t, 0, out.Results[0].TotalMessages)
	require.NotNil(t, out.Summary)
	assert.Contains(t, *out.Summary, "No Teams messages found for device 5A12345678")
}

func TestNewService_DefaultDeadline(t *testing.T) {
	svc := NewService(Config{}, logger.Discard())
	assert.Equal(t, 45*time.Second, svc.cfg.SearchDeadline)
}
