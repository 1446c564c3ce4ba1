package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the application's instrument handles.
type Metrics struct {
	ChatRequests     metric.Int64Counter
	IntentShortcuts  metric.Int64Counter
	RetrievalMisses  metric.Int64Counter
	EmbeddingBatches metric.Int64Counter
	IndexDuration    metric.Float64Histogram
	GenerateDuration metric.Float64Histogram
}

func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("pdf-chat-platform")

	chatRequests, err := meter.Int64Counter(
		"chat.requests.total",
		metric.WithDescription("Total chat questions handled"),
	)
	if err != nil {
		return nil, err
	}

	intentShortcuts, err := meter.Int64Counter(
		"chat.intent_shortcuts.total",
		metric.WithDescription("Questions answered by intent shortcut without retrieval"),
	)
	if err != nil {
		return nil, err
	}

	retrievalMisses, err := meter.Int64Counter(
		"chat.retrieval_misses.total",
		metric.WithDescription("Questions with zero retrieval hits"),
	)
	if err != nil {
		return nil, err
	}

	embeddingBatches, err := meter.Int64Counter(
		"index.embedding_batches.total",
		metric.WithDescription("Embedding batches sent during indexing"),
	)
	if err != nil {
		return nil, err
	}

	indexDuration, err := meter.Float64Histogram(
		"index.duration",
		metric.WithDescription("PDF indexing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	generateDuration, err := meter.Float64Histogram(
		"chat.generate.duration",
		metric.WithDescription("LLM generation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ChatRequests:     chatRequests,
		IntentShortcuts:  intentShortcuts,
		RetrievalMisses:  retrievalMisses,
		EmbeddingBatches: embeddingBatches,
		IndexDuration:    indexDuration,
		GenerateDuration: generateDuration,
	}, nil
}

// CountChat records one handled chat question with its outcome label.
func (m *Metrics) CountChat(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
