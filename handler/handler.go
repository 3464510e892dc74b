package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"curiosity/internal/domain"
	"curiosity/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	timestampLayout   = "2006-01-02T15:04:05.000Z"
	maxBodyBytes      = 1 << 20

	msgQuestionRequired = "Question requise"
	msgInvalidBody      = "Corps de requête invalide"
	msgBodyTooLarge     = "Corps de requête trop volumineux"
	msgMethodNotAllowed = "Method not allowed"
	msgConfiguration    = "Configuration error"
	msgUpstream         = "Mistral API error"
	msgUnknownUpstream  = "Unknown error"
	msgServer           = "Erreur serveur"
)

type Asker interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

type askRequest struct {
	Question     string               `json:"question"`
	MaxSentences *int                 `json:"max_sentences"`
	History      []domain.ChatMessage `json:"history"`
}

type askResponse struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Timestamp  string   `json:"timestamp"`
	UsedSearch bool     `json:"used_search"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

// reply is a transport-neutral response; body is nil for an empty response.
type reply struct {
	status int
	body   []byte
}

// Handler serves POST /api/chat for both API Gateway events and net/http.
type Handler struct {
	asker Asker
}

func NewHandler(asker Asker) (*Handler, error) {
	if asker == nil {
		return nil, errors.New("handler: asker must not be nil")
	}
	return &Handler{asker: asker}, nil
}

// Handle is the Lambda entrypoint for API Gateway proxy integrations.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	var out reply
	body, err := eventBody(event)
	switch {
	case err != nil:
		slog.WarnContext(ctx, "invalid base64 body", "correlation_id", correlationID, "err", err)
		out = jsonReply(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	case len(body) > maxBodyBytes:
		out = jsonReply(http.StatusRequestEntityTooLarge, errorResponse{Error: msgBodyTooLarge})
	default:
		out = h.dispatch(ctx, event.HTTPMethod, correlationID, body)
	}

	headers := responseHeaders(out, correlationID)
	return events.APIGatewayProxyResponse{
		StatusCode: out.status,
		Headers:    headers,
		Body:       string(out.body),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(r.Header.Get(correlationHeader))
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	var out reply
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		slog.WarnContext(r.Context(), "request body too large", "correlation_id", correlationID, "limit", tooLarge.Limit)
		out = jsonReply(http.StatusRequestEntityTooLarge, errorResponse{Error: msgBodyTooLarge})
	case err != nil:
		slog.WarnContext(r.Context(), "failed to read request body", "correlation_id", correlationID, "err", err)
		out = jsonReply(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
	default:
		out = h.dispatch(r.Context(), r.Method, correlationID, body)
	}

	for k, v := range responseHeaders(out, correlationID) {
		w.Header().Set(k, v)
	}
	w.WriteHeader(out.status)
	if out.body != nil {
		_, _ = w.Write(out.body)
	}
}

func eventBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	return base64.StdEncoding.DecodeString(event.Body)
}

func (h *Handler) dispatch(ctx context.Context, method, correlationID string, body []byte) reply {
	switch method {
	case http.MethodOptions:
		return reply{status: http.StatusOK}
	case http.MethodPost:
	default:
		return jsonReply(http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed})
	}

	var req askRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			slog.WarnContext(ctx, "invalid request body", "correlation_id", correlationID, "err", err)
			return jsonReply(http.StatusBadRequest, errorResponse{Error: msgInvalidBody})
		}
	}

	in := usecase.AskInput{
		Question:  req.Question,
		History:   req.History,
		RequestID: correlationID,
	}
	if req.MaxSentences != nil {
		in.MaxSentences = *req.MaxSentences
	}

	out, err := h.asker.Ask(ctx, in)
	if err != nil {
		return errorReply(ctx, correlationID, err)
	}

	return jsonReply(http.StatusOK, askResponse{
		Answer:     out.Answer,
		Sources:    out.Sources,
		Timestamp:  out.Timestamp.UTC().Format(timestampLayout),
		UsedSearch: out.UsedSearch,
	})
}

func errorReply(ctx context.Context, correlationID string, err error) reply {
	var useErr *usecase.Error
	if !errors.As(err, &useErr) {
		slog.ErrorContext(ctx, "unexpected error", "correlation_id", correlationID, "err", err)
		return jsonReply(http.StatusInternalServerError, errorResponse{Error: msgServer, Message: err.Error()})
	}

	switch useErr.Code {
	case usecase.ErrorInvalidInput:
		return jsonReply(http.StatusBadRequest, errorResponse{Error: msgQuestionRequired})
	case usecase.ErrorConfiguration:
		slog.ErrorContext(ctx, "MISTRAL_API_KEY not configured", "correlation_id", correlationID, "err", err)
		return jsonReply(http.StatusInternalServerError, errorResponse{Error: msgConfiguration})
	case usecase.ErrorUpstream:
		details := useErr.Detail
		if details == "" {
			details = msgUnknownUpstream
		}
		return jsonReply(http.StatusInternalServerError, errorResponse{Error: msgUpstream, Details: details})
	default:
		message := err.Error()
		if useErr.Err != nil {
			message = useErr.Err.Error()
		}
		return jsonReply(http.StatusInternalServerError, errorResponse{Error: msgServer, Message: message})
	}
}

func jsonReply(status int, v any) reply {
	buf, err := json.Marshal(v)
	if err != nil {
		return reply{status: http.StatusInternalServerError, body: []byte(`{"error":"` + msgServer + `"}`)}
	}
	return reply{status: status, body: buf}
}

func responseHeaders(out reply, correlationID string) map[string]string {
	headers := make(map[string]string, len(corsHeaders)+2)
	for k, v := range corsHeaders {
		headers[k] = v
	}
	headers[correlationHeader] = correlationID
	if out.body != nil {
		headers["Content-Type"] = "application/json"
	}
	return headers
}

// headerValue looks a header up case-insensitively, as API Gateway forwards
// header names as sent by the client.
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
