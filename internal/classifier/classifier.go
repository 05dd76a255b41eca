// Package classifier определяет причину возврата по тексту тикета через OpenAI.
package classifier

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/psds-microservice/rma-service/internal/logger"
)

// Категории причины возврата.
const (
	ReasonProductDefect       = "Product Defect"
	ReasonWrongItem           = "Wrong Item"
	ReasonQualityIssue        = "Quality Issue"
	ReasonInstallationProblem = "Installation Problem"
	ReasonCustomerDecision    = "Customer Decision"
	ReasonShippingDamage      = "Shipping Damage"
	ReasonWarrantyClaim       = "Warranty Claim"
	ReasonOther               = "Other"
	ReasonUnableToDetermine   = "Unable to Determine"
	ReasonAPIError            = "API Error"

	NotSpecified = "Not specified"
)

// Result: разбор причины возврата.
type Result struct {
	PrimaryReason   string `json:"primaryReason"`
	SpecificIssue   string `json:"specificIssue"`
	CustomerImpact  string `json:"customerImpact"`
	Timeline        string `json:"timeline"`
	AdditionalNotes string `json:"additionalNotes"`
}

// Fallback: результат при сбое вызова модели.
func Fallback(err error) Result {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result{
		PrimaryReason:   ReasonAPIError,
		SpecificIssue:   "OpenAI analysis failed: " + msg,
		CustomerImpact:  NotSpecified,
		Timeline:        NotSpecified,
		AdditionalNotes: "Manual review required due to AI analysis failure",
	}
}

const systemPrompt = `You are an expert at analyzing customer support tickets for product returns (RMAs).

Your task is to analyze the ticket and provide detailed, organized information about the return reason.

Format your response as organized information with these sections:

**PRIMARY REASON:** [Main category - one of: Product Defect, Wrong Item, Quality Issue, Installation Problem, Customer Decision, Shipping Damage, Warranty Claim, Other]

**SPECIFIC ISSUE:** [Detailed description of the actual problem]

**CUSTOMER IMPACT:** [How this affected the customer]

**TIMELINE:** [When the issue occurred, if mentioned]

**ADDITIONAL NOTES:** [Any other relevant details, troubleshooting attempted, etc.]

Example format:
**PRIMARY REASON:** Product Defect
**SPECIFIC ISSUE:** Gas valve failure preventing pilot light from staying lit after multiple relight attempts
**CUSTOMER IMPACT:** Complete loss of hot water for household
**TIMELINE:** Started 3 months after installation
**ADDITIONAL NOTES:** Customer followed manual troubleshooting, unit under warranty

Analyze the entire ticket content including subject, description, and conversations. If information is missing for any section, write "Not specified" for that section.

If the ticket doesn't contain clear return information, respond with:
**PRIMARY REASON:** Unable to Determine
**SPECIFIC ISSUE:** Insufficient information in ticket content
**CUSTOMER IMPACT:** Not specified
**TIMELINE:** Not specified
**ADDITIONAL NOTES:** Ticket may not be related to a product return`

const userPromptPrefix = "Analyze this RMA ticket and determine the primary reason for return:\n\n"

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// RPS: ограничение запросов в секунду на стороне клиента; 0 отключает ограничение.
	RPS float64
}

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.Or(log).With("component", "classifier"),
	}
}

// Classify никогда не возвращает ошибку: при любом сбое отдаёт Fallback.
func (c *Client) Classify(ctx context.Context, transcript string) Result {
	content, err := c.complete(ctx, transcript)
	if err != nil {
		c.log.Warn("classification failed", "error", err)
		return Fallback(err)
	}
	return ParseResponse(content)
}

func (c *Client) complete(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPromptPrefix + transcript},
		},
		Temperature:      0.1,
		MaxTokens:        1000,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI returned empty response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("OpenAI returned empty response")
	}
	return content, nil
}
