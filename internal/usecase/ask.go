package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"curiosity/internal/domain"
)

const (
	DefaultMaxSentences = 2
	DefaultModel        = "mistral-small-latest"

	temperature     = 0.7
	topP            = 1
	questionPreview = 50
)

var (
	tracer = otel.Tracer("curiosity/internal/usecase")
	meter  = otel.Meter("curiosity/internal/usecase")
)

type LLMClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// ExchangeRecorder stores monitoring records. Failures never affect the answer.
type ExchangeRecorder interface {
	Record(ctx context.Context, ex domain.Exchange) error
}

type upstreamStatusError interface {
	HTTPStatusCode() int
	UpstreamMessage() string
}

type AskService struct {
	llm      LLMClient
	recorder ExchangeRecorder
	model    string

	questions      metric.Int64Counter
	upstreamErrors metric.Int64Counter
}

type AskInput struct {
	Question     string
	MaxSentences int
	History      []domain.ChatMessage
	RequestID    string
}

type AskOutput struct {
	Answer     string
	Sources    []string
	Timestamp  time.Time
	UsedSearch bool
}

// NewAskService wires the pipeline. recorder may be nil; an empty model falls
// back to DefaultModel.
func NewAskService(llm LLMClient, recorder ExchangeRecorder, model string) (*AskService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	questions, err := meter.Int64Counter("curiosity.questions",
		metric.WithDescription("Questions answered, by web search usage."))
	if err != nil {
		return nil, err
	}
	upstreamErrors, err := meter.Int64Counter("curiosity.upstream.errors",
		metric.WithDescription("Failed upstream completion calls, by error code."))
	if err != nil {
		return nil, err
	}

	return &AskService{
		llm:            llm,
		recorder:       recorder,
		model:          model,
		questions:      questions,
		upstreamErrors: upstreamErrors,
	}, nil
}

func (s *AskService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	if strings.TrimSpace(in.Question) == "" {
		return AskOutput{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	maxSentences := in.MaxSentences
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		requestID = newUUID()
	}

	ctx, span := tracer.Start(ctx, "usecase.Ask")
	defer span.End()

	usedSearch := needsRealTimeData(in.Question)
	span.SetAttributes(
		attribute.String("request.id", requestID),
		attribute.Int("request.max_sentences", maxSentences),
		attribute.Int("request.history", len(in.History)),
		attribute.Bool("request.used_search", usedSearch),
	)

	req := domain.CompletionRequest{
		Model:       s.model,
		Messages:    buildPromptMessages(maxSentences, in.History, in.Question),
		Temperature: temperature,
		MaxTokens:   maxTokensFor(maxSentences),
		TopP:        topP,
	}
	if usedSearch {
		req.Tools = []domain.Tool{webSearchTool}
	}

	completion, err := s.llm.Complete(ctx, req)
	if err != nil {
		useErr := classifyUpstreamError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(useErr.Code))
		s.upstreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(useErr.Code))))
		slog.ErrorContext(ctx, "mistral call failed",
			"request_id", requestID,
			"code", useErr.Code,
			"reason", useErr.Reason,
			"err", err,
		)
		return AskOutput{}, useErr
	}

	answer := extractAnswer(completion)
	sources := extractSources(answer)
	at := now().UTC()

	s.questions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("used_search", usedSearch)))
	slog.InfoContext(ctx, "question answered",
		"request_id", requestID,
		"question", preview(in.Question),
		"tools", toolsLabel(usedSearch),
		"sources", len(sources),
	)

	s.record(ctx, domain.Exchange{
		ID:              newUUID(),
		CorrelationID:   requestID,
		QuestionPreview: preview(in.Question),
		UsedSearch:      usedSearch,
		SourceCount:     len(sources),
		AnswerLength:    len([]rune(answer)),
		CreatedAt:       at,
	})

	return AskOutput{
		Answer:     answer,
		Sources:    sources,
		Timestamp:  at,
		UsedSearch: usedSearch,
	}, nil
}

func (s *AskService) record(ctx context.Context, ex domain.Exchange) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, ex); err != nil {
		slog.WarnContext(ctx, "failed to record exchange", "exchange_id", ex.ID, "request_id", ex.CorrelationID, "err", err)
	}
}

func classifyUpstreamError(err error) *Error {
	if errors.Is(err, domain.ErrMissingCredential) {
		return newError(ErrorConfiguration, "missing_api_key", err)
	}
	var statusErr upstreamStatusError
	if errors.As(err, &statusErr) {
		useErr := newError(ErrorUpstream, "mistral_error", err)
		useErr.Detail = statusErr.UpstreamMessage()
		return useErr
	}
	if errors.Is(err, domain.ErrMalformedCompletion) {
		return newError(ErrorUpstream, "mistral_malformed_response", err)
	}
	return newError(ErrorInternal, "mistral_request_failed", err)
}

func preview(question string) string {
	r := []rune(question)
	if len(r) <= questionPreview {
		return question
	}
	return string(r[:questionPreview]) + "..."
}

func toolsLabel(usedSearch bool) string {
	if usedSearch {
		return webSearchTool.Name
	}
	return "none"
}

var newUUID = func() string {
	return uuid.NewString()
}

var now = time.Now
