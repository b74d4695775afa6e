package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"into-cashflow/internal/config"
)

// CategoryScore represents a category with its confidence score
type CategoryScore struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// ReviewMerchant is one uncategorized merchant sent for review.
type ReviewMerchant struct {
	Description string          `json:"description"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Bayesian    []string        `json:"bayesian,omitempty"` // ranked guesses of the local classifier
}

// CategoryInfo describes a category with merchants already assigned to it.
type CategoryInfo struct {
	Name     string   `json:"name"`
	Examples []string `json:"examples,omitempty"`
}

type ReviewData struct {
	Merchants     []ReviewMerchant `json:"merchants"`
	AllCategories []CategoryInfo   `json:"all_categories"`
}

type AIDecision struct {
	SuggestedCategories []CategoryScore `json:"suggested_categories"` // sorted by confidence
	Source              string          `json:"source"`               // "ai" or "uncertain"
	Reasoning           string          `json:"reasoning,omitempty"`
}

type AIResponse struct {
	Decisions []AIDecision `json:"decisions"`
}

func buildAIPrompt(reviewData ReviewData) (string, error) {
	prompt := `You categorize credit card merchants for a household cash flow report. Merchant names are often in Hebrew.

**Available Categories:**
"all_categories" lists the categories in use. "examples" are merchants the user already put in that category.

**Local classifier:**
"bayesian" holds the ranked guesses of a classifier trained on the user's past choices. Trust it only when the merchant name is clear.

**Decision Rules:**
1. Suggest up to 3 categories from "all_categories", with confidence between 0 and 1, highest first.
2. If the top confidence is >= 0.7 set source="ai", otherwise source="uncertain".
3. Keep reasoning brief, 5 to 10 words.

**Output Format:**
Return only a JSON object, with exactly one decision per merchant in the SAME ORDER as the input:

{
  "decisions": [
    {
      "suggested_categories": [
        {"category": "Food & Groceries", "confidence": 0.85},
        {"category": "Leisure & Restaurants", "confidence": 0.15}
      ],
      "source": "ai",
      "reasoning": "Known supermarket chain."
    }
  ]
}

**Merchants:**

`
	data, err := json.MarshalIndent(reviewData, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding review data")
	}
	return prompt + string(data) + "\n\n**Now generate the JSON response:**", nil
}

// parseAIResponse extracts the JSON object from the reply, which may be
// wrapped in markdown.
func parseAIResponse(responseText string, want int) (AIResponse, error) {
	var resp AIResponse
	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart == -1 || jsonEnd < jsonStart {
		return resp, errors.Errorf("no JSON found in response: %s", responseText)
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &resp); err != nil {
		return resp, errors.Wrap(err, "failed to parse JSON response")
	}
	if len(resp.Decisions) != want {
		return resp, errors.Errorf("expected %d decisions, got %d", want, len(resp.Decisions))
	}
	return resp, nil
}

// callClaudeAPI asks the model for category suggestions, one decision per
// merchant.
func callClaudeAPI(ctx context.Context, cfg config.AI, reviewData ReviewData) (AIResponse, error) {
	if len(cfg.APIKey) == 0 {
		return AIResponse{}, errors.New("ANTHROPIC_API_KEY not set. Please set it in environment or config.yaml")
	}
	model := cfg.Model
	if len(model) == 0 {
		model = config.DefaultModel
	}
	prompt, err := buildAIPrompt(reviewData)
	if err != nil {
		return AIResponse{}, err
	}

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return AIResponse{}, errors.Wrap(err, "claude API call failed")
	}
	if len(message.Content) == 0 {
		return AIResponse{}, errors.New("empty response from Claude API")
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}
	return parseAIResponse(responseText, len(reviewData.Merchants))
}
