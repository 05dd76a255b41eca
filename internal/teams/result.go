package teams

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/psds-microservice/rma-service/internal/extractor"
	"github.com/psds-microservice/rma-service/internal/textutil"
)

const (
	maxHitsPerChat   = 5
	summaryChats     = 3
	previewRunes     = 100
	summarySeparator = "\n\n---\n\n"
)

// MessageHit: сообщение чата, в котором упомянут ID устройства.
type MessageHit struct {
	ID              string    `json:"id"`
	From            string    `json:"from"`
	FromEmail       string    `json:"fromEmail"`
	Content         string    `json:"content"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	MessageType     string    `json:"messageType"`
}

// ChatHit: чат с совпадениями; Messages содержит не больше пяти самых новых.
type ChatHit struct {
	ChatID        string       `json:"chatId"`
	ChatTopic     string       `json:"chatTopic"`
	ChatType      string       `json:"chatType"`
	MessagesFound int          `json:"messagesFound"`
	Messages      []MessageHit `json:"messages"`

	latest time.Time
}

// DeviceSearchResult: итог поиска одного ID устройства.
type DeviceSearchResult struct {
	SearchPerformed bool      `json:"searchPerformed"`
	DeviceID        string    `json:"deviceId"`
	ChatsSearched   int       `json:"chatsSearched"`
	TotalChats      int       `json:"totalChats"`
	MatchingChats   int       `json:"matchingChats"`
	TotalMessages   int       `json:"totalMessages"`
	Results         []ChatHit `json:"results"`
	Summary         string    `json:"summary"`
	Error           string    `json:"error,omitempty"`
}

// Outcome: результат поиска по набору ID. Results == nil, если сохранять нечего.
type Outcome struct {
	Results []DeviceSearchResult
	Summary *string
}

func outcome(results []DeviceSearchResult, summary string) Outcome {
	return Outcome{Results: results, Summary: &summary}
}

func failedResult(id string, err error) DeviceSearchResult {
	return DeviceSearchResult{
		DeviceID: id,
		Results:  []ChatHit{},
		Summary:  "Teams search failed: " + err.Error(),
		Error:    err.Error(),
	}
}

type loadedChat struct {
	chat     chat
	messages []message
}

// messageText: тело сообщения простым текстом.
func messageText(m message) string {
	return textutil.StripHTML(m.Body.Content)
}

func matches(text string, variants []string) bool {
	lower := strings.ToLower(text)
	for _, v := range variants {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// aggregate ищет id в загруженных чатах и собирает результат с резюме.
func aggregate(id string, chats []loadedChat, searched, total int) DeviceSearchResult {
	variants := extractor.SearchVariants(id)
	res := DeviceSearchResult{
		SearchPerformed: true,
		DeviceID:        id,
		ChatsSearched:   searched,
		TotalChats:      total,
		Results:         []ChatHit{},
	}

	for _, lc := range chats {
		var hits []MessageHit
		for _, m := range lc.messages {
			text := messageText(m)
			if !matches(text, variants) {
				continue
			}
			from, email := m.sender()
			kind := m.MessageType
			if kind == "" {
				kind = "message"
			}
			hits = append(hits, MessageHit{
				ID:              m.ID,
				From:            from,
				FromEmail:       email,
				Content:         text,
				CreatedDateTime: m.CreatedDateTime,
				MessageType:     kind,
			})
		}
		if len(hits) == 0 {
			continue
		}
		slices.SortStableFunc(hits, func(a, b MessageHit) int {
			return b.CreatedDateTime.Compare(a.CreatedDateTime)
		})
		chatType := lc.chat.ChatType
		if chatType == "" {
			chatType = "oneOnOne"
		}
		hit := ChatHit{
			ChatID:        lc.chat.ID,
			ChatTopic:     lc.chat.displayName(),
			ChatType:      chatType,
			MessagesFound: len(hits),
			Messages:      hits[:min(len(hits), maxHitsPerChat)],
			latest:        hits[0].CreatedDateTime,
		}
		res.Results = append(res.Results, hit)
		res.TotalMessages += hit.MessagesFound
	}

	slices.SortStableFunc(res.Results, func(a, b ChatHit) int {
		return b.latest.Compare(a.latest)
	})
	res.MatchingChats = len(res.Results)
	res.Summary = deviceSummary(res)
	return res
}

func deviceSummary(r DeviceSearchResult) string {
	searched := fmt.Sprintf("Searched %d of %d accessible chats.", r.ChatsSearched, r.TotalChats)
	if len(r.Results) == 0 {
		return fmt.Sprintf("No Teams messages found for device %s. %s", r.DeviceID, searched)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d message(s) mentioning device %s across %d chat(s).\n\n", r.TotalMessages, r.DeviceID, len(r.Results))

	names := make([]string, 0, summaryChats)
	for _, c := range r.Results[:min(len(r.Results), summaryChats)] {
		names = append(names, c.ChatTopic)
	}
	b.WriteString("Found in: " + strings.Join(names, ", "))
	if extra := len(r.Results) - summaryChats; extra > 0 {
		fmt.Fprintf(&b, " and %d other chat(s)", extra)
	}

	if msgs := r.Results[0].Messages; len(msgs) > 0 {
		fmt.Fprintf(&b, "\n\nMost recent: \"%s...\" - %s", textutil.Truncate(msgs[0].Content, previewRunes), msgs[0].From)
	}
	b.WriteString("\n\n" + searched)
	return b.String()
}
