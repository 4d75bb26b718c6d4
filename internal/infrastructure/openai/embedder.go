package openai

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/go-recommender/pkg/e"
)

type embeddingsRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embedder векторизует текст через /embeddings.
type Embedder struct {
	client    *Client
	model     string
	dimension int
}

func NewEmbedder(client *Client, model string, dimension int) *Embedder {
	return &Embedder{client: client, model: model, dimension: dimension}
}

func (em *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "openai.Embedder.Embed"

	var resp embeddingsResponse
	err := em.client.postJSON(ctx, "/embeddings", embeddingsRequest{
		Model:      em.model,
		Input:      text,
		Dimensions: em.dimension,
	}, &resp)
	if err != nil {
		return nil, e.Wrap(op, e.As(e.ErrEmbedding, err))
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: no embedding returned", e.ErrEmptyVector))
	}

	return resp.Data[0].Embedding, nil
}
