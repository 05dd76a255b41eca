package freshdesk

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/psds-microservice/rma-service/internal/extractor"
	"github.com/psds-microservice/rma-service/internal/textutil"
)

const (
	transcriptConversations = 10
	transcriptEntryLimit    = 500
	transcriptLimit         = 60000
)

// Ticket: тикет Freshdesk с перепиской и заявителем.
type Ticket struct {
	ID              int64                      `json:"id"`
	Subject         string                     `json:"subject"`
	Description     string                     `json:"description"`
	DescriptionText string                     `json:"description_text"`
	Status          int                        `json:"status"`
	CreatedAt       time.Time                  `json:"created_at"`
	CustomFields    map[string]json.RawMessage `json:"custom_fields"`
	Requester       *Requester                 `json:"requester"`
	Conversations   []Conversation             `json:"conversations"`

	// Raw: исходный JSON ответа, сохраняется в raw_ticket_data.
	Raw json.RawMessage `json:"-"`
}

type Requester struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Conversation struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	BodyText  string    `json:"body_text"`
	CreatedAt time.Time `json:"created_at"`
	FromEmail string    `json:"from_email"`
	Private   bool      `json:"private"`
}

// Text: тело сообщения простым текстом: body_text, иначе body без HTML.
func (c Conversation) Text() string {
	if strings.TrimSpace(c.BodyText) != "" {
		return c.BodyText
	}
	return textutil.StripHTML(c.Body)
}

func (t *Ticket) DescriptionPlain() string {
	if strings.TrimSpace(t.DescriptionText) != "" {
		return t.DescriptionText
	}
	return textutil.StripHTML(t.Description)
}

func (t *Ticket) RequesterName() string {
	if t.Requester == nil {
		return ""
	}
	return t.Requester.Name
}

func (t *Ticket) RequesterEmail() string {
	if t.Requester == nil {
		return ""
	}
	return t.Requester.Email
}

// CustomField возвращает значение custom field строкой; строки JSON раскавычиваются.
func (t *Ticket) CustomField(key string) string {
	raw, ok := t.CustomFields[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ExtractionInput собирает текстовые источники для поиска ID устройств.
func (t *Ticket) ExtractionInput(vidsFieldKey string) extractor.Input {
	convs := make([]string, 0, len(t.Conversations))
	for _, c := range t.Conversations {
		convs = append(convs, c.Text())
	}
	return extractor.Input{
		Subject:       t.Subject,
		Description:   t.DescriptionPlain(),
		Conversations: convs,
		CustomField:   t.CustomField(vidsFieldKey),
	}
}

var statusLabels = map[int]string{
	2: "Open",
	3: "Pending",
	4: "Resolved",
	5: "Closed",
	6: "Waiting on Customer",
	7: "Waiting on Third Party",
}

// StatusLabel переводит числовой статус Freshdesk в название; неизвестный код возвращается числом.
func StatusLabel(code int) string {
	if l, ok := statusLabels[code]; ok {
		return l
	}
	return strconv.Itoa(code)
}

// BuildTranscript формирует текст тикета для классификатора: тема, описание, статус
// и последние сообщения переписки. Длина результата ограничена.
func BuildTranscript(t *Ticket) string {
	var parts []string
	if s := strings.TrimSpace(t.Subject); s != "" {
		parts = append(parts, "TICKET SUBJECT: "+t.Subject)
	}
	if d := t.DescriptionPlain(); strings.TrimSpace(d) != "" {
		parts = append(parts, "INITIAL DESCRIPTION: "+d)
	}
	if t.Status != 0 {
		parts = append(parts, "TICKET INFO: Status: "+StatusLabel(t.Status))
	}

	if len(t.Conversations) > 0 {
		recent := t.Conversations
		if len(recent) > transcriptConversations {
			recent = recent[len(recent)-transcriptConversations:]
		}
		parts = append(parts, "CONVERSATION HISTORY:")
		for i, c := range recent {
			body := textutil.CollapseSpaces(c.Text())
			if body == "" {
				continue
			}
			if cut := textutil.Truncate(body, transcriptEntryLimit); cut != body {
				body = cut + "..."
			}

			var header strings.Builder
			header.WriteString("Message ")
			header.WriteString(strconv.Itoa(i + 1))
			if c.FromEmail != "" {
				header.WriteString(" (from: " + c.FromEmail + ")")
			}
			if c.Private {
				header.WriteString(" [INTERNAL]")
			}
			parts = append(parts, header.String()+": "+body)
		}
	}

	return textutil.Truncate(strings.Join(parts, "\n\n"), transcriptLimit)
}
