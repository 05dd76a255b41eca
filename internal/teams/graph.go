package teams

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/rma-service/internal/errs"
)

const (
	graphService = "Microsoft Graph"
	pageSize     = 50
)

type chat struct {
	ID       string   `json:"id"`
	Topic    string   `json:"topic"`
	ChatType string   `json:"chatType"`
	Members  []member `json:"members"`
}

type member struct {
	DisplayName string   `json:"displayName"`
	UserID      string   `json:"userId"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
}

type message struct {
	ID              string    `json:"id"`
	MessageType     string    `json:"messageType"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	From            *struct {
		User *struct {
			ID                string `json:"id"`
			DisplayName       string `json:"displayName"`
			UserPrincipalName string `json:"userPrincipalName"`
		} `json:"user"`
	} `json:"from"`
	Body struct {
		Content     string `json:"content"`
		ContentType string `json:"contentType"`
	} `json:"body"`
}

func (m message) sender() (name, email string) {
	if m.From == nil || m.From.User == nil {
		return "Unknown User", ""
	}
	name = m.From.User.DisplayName
	if name == "" {
		name = "Unknown User"
	}
	return name, m.From.User.UserPrincipalName
}

// displayName: тема чата, для личных чатов "Chat with <участник>".
func (c chat) displayName() string {
	if c.Topic != "" {
		return c.Topic
	}
	for _, m := range c.Members {
		if !hasRole(m.Roles, "owner") {
			name := m.DisplayName
			if name == "" {
				name = "Unknown"
			}
			return "Chat with " + name
		}
	}
	return "Direct Chat"
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// graphClient: минимальный клиент Graph REST; авторизация на уровне http.Client.
type graphClient struct {
	baseURL string
	owner   string
	http    *http.Client
}

// listChats возвращает до limit чатов владельца с участниками.
func (g *graphClient) listChats(ctx context.Context, limit int) ([]chat, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(min(limit, pageSize)))
	q.Set("$expand", "members")
	next := g.baseURL + g.owner + "/chats?" + q.Encode()

	var out []chat
	for next != "" && len(out) < limit {
		var p page[chat]
		if err := g.get(ctx, next, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Value...)
		next = p.NextLink
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// listMessages возвращает до limit сообщений чата от новых к старым, не старше since.
func (g *graphClient) listMessages(ctx context.Context, chatID string, limit int, since time.Time) ([]message, error) {
	q := url.Values{}
	q.Set("$top", strconv.Itoa(pageSize))
	q.Set("$orderby", "createdDateTime desc")
	next := g.baseURL + g.owner + "/chats/" + url.PathEscape(chatID) + "/messages?" + q.Encode()

	var out []message
	for next != "" {
		var p page[message]
		if err := g.get(ctx, next, &p); err != nil {
			return nil, err
		}
		for _, m := range p.Value {
			if !since.IsZero() && m.CreatedDateTime.Before(since) {
				return out, nil
			}
			out = append(out, m)
			if len(out) >= limit {
				return out, nil
			}
		}
		next = p.NextLink
	}
	return out, nil
}

func (g *graphClient) get(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.NewAuthenticationError(graphService, fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errs.NewExternalServiceError(graphService, fmt.Sprintf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}
