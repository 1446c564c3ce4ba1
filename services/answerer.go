package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"pdf-chat-platform/internal/ai"
	"pdf-chat-platform/internal/logger"
	"pdf-chat-platform/internal/telemetry"
	"pdf-chat-platform/internal/vector"
	"pdf-chat-platform/models"
	"pdf-chat-platform/utils"
)

const (
	greetingReply = "Hello! 👋 How can I help you today?"
	farewellReply = "Goodbye! 👋 Have a great day!"
	thanksReply   = "You're welcome! 😊"
	builtByReply  = "I'm a document assistant that answers questions grounded in your uploaded PDFs."

	noHitReply   = "I couldn't find relevant information in the PDF."
	apologyReply = "Sorry, I couldn't generate an answer right now. Please try again in a moment."
)

// ErrEmptyQuestion is returned when the trimmed question is blank.
var ErrEmptyQuestion = errors.New("question is empty")

// Generator is the LLM surface the answerer needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answerer turns one question about one indexed PDF into one sanitized
// answer. It is stateless across questions; history is append-only.
type Answerer struct {
	embedder ai.Embedder
	store    vector.Store
	llm      Generator
	history  HistoryStore
	metrics  *telemetry.Metrics

	retrievalK int
	mcqK       int
}

func NewAnswerer(embedder ai.Embedder, store vector.Store, llm Generator, history HistoryStore, metrics *telemetry.Metrics, retrievalK, mcqK int) *Answerer {
	if retrievalK <= 0 {
		retrievalK = 4
	}
	if mcqK <= 0 {
		mcqK = 8
	}
	return &Answerer{
		embedder:   embedder,
		store:      store,
		llm:        llm,
		history:    history,
		metrics:    metrics,
		retrievalK: retrievalK,
		mcqK:       mcqK,
	}
}

// Answer runs the full question flow and records the turn for
// (owner, pdf). Errors from the embedding or generation providers are
// converted to canned replies rather than returned; the only errors
// surfaced are for blank questions.
func (a *Answerer) Answer(ctx context.Context, owner, pdf, question string) (*models.ChatResponse, error) {
	ctx, span := otel.Tracer("answerer").Start(ctx, "answerer.Answer")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	reply, grounded, outcome := a.answer(ctx, owner, pdf, question)
	a.metrics.CountChat(ctx, outcome)

	// Canned replies are fixed strings and must stay verbatim; only model
	// output passes through the markup whitelist.
	rendered := reply
	if grounded {
		rendered = utils.SanitizeAnswer(reply)
	}
	now := time.Now()
	turn := models.ChatTurn{
		Question:  question,
		Answer:    rendered,
		Timestamp: now,
	}
	if err := a.history.AppendTurn(ctx, owner, pdf, turn); err != nil {
		logger.Warn("failed to record chat turn", "user", owner, "pdf", pdf, "error", err)
	}

	return &models.ChatResponse{
		Reply:     rendered,
		PDF:       pdf,
		Grounded:  grounded,
		Timestamp: now,
	}, nil
}

func (a *Answerer) answer(ctx context.Context, owner, pdf, question string) (reply string, grounded bool, outcome string) {
	if canned, ok := classifyIntent(question); ok {
		if a.metrics != nil {
			a.metrics.IntentShortcuts.Add(ctx, 1)
		}
		return canned, false, "intent"
	}

	k := a.retrievalK
	mcq, options := detectMultipleChoice(question)
	if mcq {
		k = a.mcqK
	}

	queryVec, err := a.embedder.EmbedQuery(ctx, question)
	if err != nil {
		logger.Error("query embedding failed", "pdf", pdf, "error", err)
		return apologyReply, false, "embed_error"
	}

	collection := vector.CollectionName(owner, pdf)
	hits, err := a.store.Query(ctx, collection, queryVec, k)
	if err != nil {
		logger.Error("retrieval failed", "collection", collection, "error", err)
		hits = nil
	}
	if len(hits) == 0 {
		if a.metrics != nil {
			a.metrics.RetrievalMisses.Add(ctx, 1)
		}
		return noHitReply, false, "no_hit"
	}

	contextBlock := BuildContext(hits)
	var prompt string
	if mcq {
		prompt = BuildMCQPrompt(contextBlock, augmentWithOptions(question, options))
	} else {
		prompt = BuildQAPrompt(contextBlock, question)
	}

	start := time.Now()
	text, err := a.llm.Generate(ctx, prompt)
	if a.metrics != nil {
		a.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		logger.Error("generation failed", "pdf", pdf, "error", err)
		return apologyReply, false, "generate_error"
	}
	return strings.TrimSpace(text), true, "answered"
}

var (
	greetingWords = map[string]bool{"hi": true, "hello": true, "hey": true, "hiya": true, "hii": true}
	farewellWords = map[string]bool{"bye": true, "goodbye": true, "exit": true, "quit": true}
	thanksWords   = map[string]bool{"thanks": true, "thx": true}

	builtByPhrases = []string{"who built you", "who made you", "who created you", "who built this"}

	wordSplit = regexp.MustCompile(`[^a-z]+`)
)

// classifyIntent matches small closed vocabularies on whole words only,
// so "which" never matches "hi" and "archive" never matches "hi".
func classifyIntent(question string) (string, bool) {
	lower := strings.ToLower(question)

	for _, phrase := range builtByPhrases {
		if strings.Contains(lower, phrase) {
			return builtByReply, true
		}
	}
	if strings.Contains(lower, "thank you") {
		return thanksReply, true
	}

	for _, word := range wordSplit.Split(lower, -1) {
		switch {
		case greetingWords[word]:
			return greetingReply, true
		case farewellWords[word]:
			return farewellReply, true
		case thanksWords[word]:
			return thanksReply, true
		}
	}
	return "", false
}

var optionPattern = regexp.MustCompile(`(?:^|\s)([A-Da-d])[).]\s+`)

// detectMultipleChoice reports whether the question looks like a
// multiple-choice item, and extracts any lettered option text it can.
func detectMultipleChoice(question string) (bool, []string) {
	lower := strings.ToLower(question)
	markers := optionPattern.FindAllStringSubmatchIndex(question, -1)

	isMCQ := len(markers) >= 2 ||
		strings.Contains(lower, "which of the following") ||
		strings.Contains(lower, "choose the correct") ||
		strings.Contains(lower, "select the correct")
	if !isMCQ {
		return false, nil
	}
	if len(markers) < 2 {
		return true, nil
	}

	options := make([]string, 0, len(markers))
	for i, m := range markers {
		letter := question[m[2]:m[3]]
		start := m[1]
		end := len(question)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		text := strings.TrimSpace(question[start:end])
		if text != "" {
			options = append(options, strings.ToUpper(letter)+") "+text)
		}
	}
	return true, options
}

func augmentWithOptions(question string, options []string) string {
	if len(options) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\n\nOptions:\n")
	for _, opt := range options {
		b.WriteString(opt)
		b.WriteString("\n")
	}
	return b.String()
}
