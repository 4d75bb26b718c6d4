package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/images"
	"github.com/goccy/go-json"
)

const extractionInstruction = `You extract product information from product photos.
All attached images show the same product. Read every visible label, package text and tag.

Respond with a single JSON object and nothing else, using exactly these fields:
{
  "product_name": "",
  "product_code": "",
  "short_description": "",
  "long_description": ""
}

product_name: the main product title, including model or variant names.
product_code: an SKU, article, model number or item code printed on the product or its label.
short_description: one or two sentences with the key selling points.
long_description: technical details such as materials, dimensions, capabilities and usage.

Copy text and technical terms as written, in the original language.
Leave a field as an empty string when the information is not visible. Do not invent data.`

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractedFields - ожидаемая структура ответа модели.
type extractedFields struct {
	ProductName      string `json:"product_name"`
	ProductCode      string `json:"product_code"`
	ShortDescription string `json:"short_description"`
	LongDescription  string `json:"long_description"`
}

// Extractor извлекает карточку товара через vision-модель chat completions.
type Extractor struct {
	client    *Client
	model     string
	maxTokens int
}

func NewExtractor(client *Client, model string, maxTokens int) *Extractor {
	return &Extractor{client: client, model: model, maxTokens: maxTokens}
}

// Extract отправляет все изображения единицы одним запросом.
func (x *Extractor) Extract(ctx context.Context, imgs []domain.Image) (*domain.Candidate, error) {
	const op = "openai.Extractor.Extract"

	if len(imgs) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}

	parts := make([]contentPart, 0, len(imgs)+1)
	parts = append(parts, contentPart{Type: "text", Text: extractionInstruction})

	var format images.Format
	for i, img := range imgs {
		f, err := images.Detect(img.Data)
		if err != nil {
			return nil, e.Wrap(op, fmt.Errorf("%s: %w", img.Name, err))
		}
		if i == 0 {
			format = f
		}
		parts = append(parts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL:    "data:" + f.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
				Detail: "high",
			},
		})
	}

	var resp chatResponse
	err := x.client.postJSON(ctx, "/chat/completions", chatRequest{
		Model:     x.model,
		Messages:  []chatMessage{{Role: "user", Content: parts}},
		MaxTokens: x.maxTokens,
	}, &resp)
	if err != nil {
		return nil, e.Wrap(op, e.As(e.ErrExtraction, err))
	}
	if len(resp.Choices) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: no choices in response", e.ErrExtraction))
	}

	fields, err := parseFields(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &domain.Candidate{
		Name:             strings.TrimSpace(fields.ProductName),
		Code:             strings.TrimSpace(fields.ProductCode),
		ShortDescription: strings.TrimSpace(fields.ShortDescription),
		LongDescription:  strings.TrimSpace(fields.LongDescription),
		ImageFormat:      string(format),
	}, nil
}

// parseFields разбирает ответ модели. Если вокруг JSON есть посторонний текст
// (например, markdown-ограждение), берётся фрагмент от первой '{' до последней '}'.
func parseFields(content string) (*extractedFields, error) {
	content = strings.TrimSpace(content)

	var fields extractedFields
	if err := json.Unmarshal([]byte(content), &fields); err == nil {
		return &fields, nil
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: response contains no JSON object", e.ErrExtraction)
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON in response: %v", e.ErrExtraction, err)
	}

	return &fields, nil
}
