package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/itechmeat/jeex/pkg/apperr"
)

// Dimensions is the fixed embedding width the vector_points table's
// pgvector column is declared with.
const Dimensions = 1536

// Embedder turns a batch of chunk texts into equal-length float32
// vectors, one per input, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// BedrockEmbedder calls AWS Bedrock's Titan embeddings model. One request
// per input text, since the Titan embeddings API has no native batch
// endpoint — callers needing throughput should pipeline calls rather than
// wait on a single round trip per chunk.
type BedrockEmbedder struct {
	client  *bedrockruntime.Client
	modelID string
}

func NewBedrockEmbedder(client *bedrockruntime.Client, modelID string) *BedrockEmbedder {
	if modelID == "" {
		modelID = "amazon.titan-embed-text-v1"
	}
	return &BedrockEmbedder{client: client, modelID: modelID}
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func (b *BedrockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		body, err := json.Marshal(titanEmbedRequest{InputText: text})
		if err != nil {
			return nil, fmt.Errorf("embedding: marshal titan request: %w", err)
		}

		out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(b.modelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, fmt.Sprintf("embedding: bedrock invoke model (chunk %d)", i), err)
		}

		var resp titanEmbedResponse
		if err := json.Unmarshal(out.Body, &resp); err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, "embedding: decode titan response", err)
		}
		vectors[i] = resp.Embedding
	}
	return vectors, nil
}

// HashEmbedder is a deterministic, dependency-free fallback used when no
// Bedrock credentials are configured (local dev, tests). It is not
// semantically meaningful — identical inputs hash to identical vectors,
// and any other two inputs, however similar, get unrelated vectors — but
// it lets the rest of the pipeline
// (chunking, upsert, search) run end to end without live AWS credentials.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dimensions: Dimensions}
}

func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text, h.dimensions)
	}
	return vectors, nil
}

// hashVector derives a unit-length pseudo-embedding from repeated SHA-256
// hashing of the input, seeded with the running block index so consecutive
// blocks don't repeat the same 32 bytes.
func hashVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	block := 0
	buf := make([]byte, 0, len(text)+8)
	for i := 0; i < dims; i += 8 {
		buf = buf[:0]
		buf = append(buf, []byte(text)...)
		var idx [8]byte
		binary.LittleEndian.PutUint64(idx[:], uint64(block))
		buf = append(buf, idx[:]...)
		sum := sha256.Sum256(buf)
		for j := 0; j < 8 && i+j < dims; j++ {
			bits := binary.LittleEndian.Uint32(sum[j*4 : j*4+4])
			v[i+j] = (float32(bits)/float32(math.MaxUint32))*2 - 1
		}
		block++
	}
	normalize(v)
	return v
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
