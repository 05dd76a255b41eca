// Package teams ищет упоминания ID устройств в чатах Microsoft Teams через Graph API.
//
// Два режима: с делегированным токеном пользователя (его чаты, /me) и с учётными
// данными приложения (client credentials, чаты настроенного пользователя).
package teams

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"

	"github.com/psds-microservice/rma-service/internal/errs"
	"github.com/psds-microservice/rma-service/internal/extractor"
	"github.com/psds-microservice/rma-service/internal/logger"
)

const (
	userChatLimit    = 20
	userMessageLimit = 100
	appChatLimit     = 50
	appMessageLimit  = 500
	chatLoaders      = 4

	graphScope = "https://graph.microsoft.com/.default"
)

// SummaryNotConfigured: резюме, когда учётные данные приложения не заданы.
const SummaryNotConfigured = "Microsoft Teams credentials not configured - search skipped"

// Credential: способ авторизации поиска: UserCredential или ServiceCredential.
type Credential interface {
	credential()
}

// UserCredential: делегированный токен пользователя.
type UserCredential struct {
	Token string
}

// ServiceCredential: учётные данные приложения из конфигурации.
type ServiceCredential struct{}

func (UserCredential) credential()    {}
func (ServiceCredential) credential() {}

// Searcher ищет набор ID в одном режиме авторизации.
type Searcher interface {
	Search(ctx context.Context, ids []string) Outcome
}

type Config struct {
	GraphBaseURL   string
	ClientID       string
	ClientSecret   string
	TenantID       string
	// TokenURL перекрывает адрес токенов Microsoft identity platform.
	TokenURL       string
	SearchUserID   string
	Timeout        time.Duration
	MonthsBack     int
	// SearchDeadline ограничивает весь вызов Search; по истечении незагруженные чаты пропускаются.
	SearchDeadline time.Duration
}

func (c Config) configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TenantID != "" && c.SearchUserID != ""
}

type Service struct {
	cfg       Config
	transport http.RoundTripper
	log       *slog.Logger
	now       func() time.Time

	// источник токенов приложения создаётся один раз и кэширует токен до истечения
	appOnce   sync.Once
	appTokens oauth2.TokenSource
}

func NewService(cfg Config, log *slog.Logger) *Service {
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = "https://graph.microsoft.com/v1.0"
	}
	cfg.GraphBaseURL = strings.TrimRight(cfg.GraphBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SearchDeadline <= 0 {
		cfg.SearchDeadline = 45 * time.Second
	}
	if cfg.TokenURL == "" && cfg.TenantID != "" {
		cfg.TokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
	}
	return &Service{
		cfg:       cfg,
		transport: otelhttp.NewTransport(http.DefaultTransport),
		log:       logger.Or(log).With("component", "teams"),
		now:       time.Now,
	}
}

// Search выбирает режим по типу учётных данных. Ошибки не возвращаются:
// сбои попадают в результаты и резюме.
func (s *Service) Search(ctx context.Context, ids []string, cred Credential) Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchDeadline)
	defer cancel()

	var sr Searcher
	switch c := cred.(type) {
	case UserCredential:
		sr = &userSearcher{svc: s, token: c.Token}
	default:
		sr = &appSearcher{svc: s}
	}
	return sr.Search(ctx, ids)
}

// SearchDevice ищет один ID в чатах пользователя с делегированным токеном.
func (s *Service) SearchDevice(ctx context.Context, id, token string) DeviceSearchResult {
	u := &userSearcher{svc: s, token: token}
	return u.searchOne(ctx, id)
}

func (s *Service) since() time.Time {
	if s.cfg.MonthsBack <= 0 {
		return time.Time{}
	}
	return s.now().AddDate(0, -s.cfg.MonthsBack, 0)
}

// loadChats загружает сообщения чатов параллельно; чат с ошибкой пропускается.
func (s *Service) loadChats(ctx context.Context, g *graphClient, chats []chat, limit int) []loadedChat {
	loaded := make([]loadedChat, len(chats))
	ok := make([]bool, len(chats))
	since := s.since()

	var eg errgroup.Group
	eg.SetLimit(chatLoaders)
	for i, c := range chats {
		eg.Go(func() error {
			msgs, err := g.listMessages(ctx, c.ID, limit, since)
			if err != nil {
				s.log.Warn("chat messages unavailable", "chat_id", c.ID, "error", err)
				return nil
			}
			loaded[i] = loadedChat{chat: c, messages: msgs}
			ok[i] = true
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]loadedChat, 0, len(chats))
	for i := range loaded {
		if ok[i] {
			out = append(out, loaded[i])
		}
	}
	return out
}

type userSearcher struct {
	svc   *Service
	token string
}

// Search запускает поиск по каждому ID параллельно, у каждого свой таймаут.
func (u *userSearcher) Search(ctx context.Context, ids []string) Outcome {
	results := make([]DeviceSearchResult, len(ids))
	var eg errgroup.Group
	for i, id := range ids {
		eg.Go(func() error {
			results[i] = u.searchOne(ctx, id)
			return nil
		})
	}
	_ = eg.Wait()

	terms := strings.Join(ids, ", ")
	var performed, messages, chats int
	var firstErr string
	for _, r := range results {
		if !r.SearchPerformed {
			if firstErr == "" {
				firstErr = r.Error
			}
			continue
		}
		performed++
		messages += r.TotalMessages
		chats += r.MatchingChats
	}

	switch {
	case performed == 0 && len(ids) > 0:
		return outcome(nil, "Teams search attempted but failed: "+firstErr)
	case messages == 0:
		return outcome(nil, "Teams search performed with user authentication but no messages found for search terms: "+terms)
	default:
		return outcome(results, fmt.Sprintf(
			"Teams search performed with user authentication. Found %d message(s) across %d chat(s) for device IDs: %s",
			messages, chats, terms))
	}
}

func (u *userSearcher) searchOne(ctx context.Context, id string) DeviceSearchResult {
	ctx, cancel := context.WithTimeout(ctx, u.svc.cfg.Timeout)
	defer cancel()

	g := &graphClient{
		baseURL: u.svc.cfg.GraphBaseURL,
		owner:   "/me",
		http: &http.Client{Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: u.token, TokenType: "Bearer"}),
			Base:   u.svc.transport,
		}},
	}
	chats, err := g.listChats(ctx, userChatLimit)
	if err != nil {
		u.svc.log.Warn("user teams search failed", "device_id", id, "error", err)
		return failedResult(id, err)
	}
	loaded := u.svc.loadChats(ctx, g, chats, userMessageLimit)
	return aggregate(id, loaded, len(chats), len(chats))
}

type appSearcher struct {
	svc *Service
}

func (s *Service) tokenSource() oauth2.TokenSource {
	s.appOnce.Do(func() {
		cc := clientcredentials.Config{
			ClientID:     s.cfg.ClientID,
			ClientSecret: s.cfg.ClientSecret,
			TokenURL:     s.cfg.TokenURL,
			Scopes:       []string{graphScope},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
			Transport: s.transport,
			Timeout:   s.cfg.Timeout,
		})
		s.appTokens = cc.TokenSource(ctx)
	})
	return s.appTokens
}

// Search ищет только ID с префиксом 5A. Чаты и сообщения загружаются один раз
// и проверяются на все ID.
func (a *appSearcher) Search(ctx context.Context, ids []string) Outcome {
	s := a.svc
	if !s.cfg.configured() {
		return outcome(nil, SummaryNotConfigured)
	}

	var reserved []string
	for _, id := range ids {
		if extractor.IsReservedPrefix(id) {
			reserved = append(reserved, id)
		}
	}
	if len(reserved) == 0 {
		return outcome(nil, "No "+extractor.ReservedPrefix+" device IDs found to search in Teams")
	}

	ts := s.tokenSource()
	if _, err := ts.Token(); err != nil {
		s.log.Error("teams token request failed", "error", err)
		return failAll(reserved, errs.NewAuthenticationError("Microsoft Teams", err.Error()))
	}

	g := &graphClient{
		baseURL: s.cfg.GraphBaseURL,
		owner:   "/users/" + s.cfg.SearchUserID,
		http: &http.Client{
			Transport: &oauth2.Transport{Source: ts, Base: s.transport},
			Timeout:   s.cfg.Timeout,
		},
	}
	chats, err := g.listChats(ctx, appChatLimit)
	if err != nil {
		s.log.Error("teams chat enumeration failed", "error", err)
		return failAll(reserved, err)
	}
	loaded := s.loadChats(ctx, g, chats, appMessageLimit)

	results := make([]DeviceSearchResult, 0, len(reserved))
	summaries := make([]string, 0, len(reserved))
	for _, id := range reserved {
		r := aggregate(id, loaded, len(chats), len(chats))
		results = append(results, r)
		summaries = append(summaries, r.Summary)
	}
	return outcome(results, strings.Join(summaries, summarySeparator))
}

func failAll(ids []string, err error) Outcome {
	results := make([]DeviceSearchResult, 0, len(ids))
	summaries := make([]string, 0, len(ids))
	for _, id := range ids {
		r := failedResult(id, err)
		results = append(results, r)
		summaries = append(summaries, r.Summary)
	}
	return outcome(results, strings.Join(summaries, summarySeparator))
}
