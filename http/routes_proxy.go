package forgehttp

import (
	"bufio"
	"encoding/json"
	"fmt"

	"cardforge/modules/ai"
	"cardforge/modules/security"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

const CodeUpstreamError = "UPSTREAM_ERROR"

type proxyChatRequest struct {
	BaseURL          string       `json:"base_url"`
	APIKey           string       `json:"api_key"`
	Model            string       `json:"model"`
	Messages         []ai.Message `json:"messages"`
	Temperature      *float64     `json:"temperature"`
	MaxTokens        *int         `json:"max_tokens"`
	Stream           *bool        `json:"stream"`
	TopP             *float64     `json:"top_p"`
	FrequencyPenalty *float64     `json:"frequency_penalty"`
	PresencePenalty  *float64     `json:"presence_penalty"`
	Stop             []string     `json:"stop"`
}

type proxyModelsRequest struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

type proxyImageRequest struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Quality        string `json:"quality"`
	ResponseFormat string `json:"response_format"`
	Style          string `json:"style"`
}

// newAIClient builds the upstream client, translating egress gate refusals
// into 403s before anything leaves the process.
func newAIClient(ctx *fasthttp.RequestCtx, baseURL, apiKey string) *ai.Client {
	client, err := ai.NewClient(baseURL, apiKey, egressPolicy)
	if err != nil {
		if errors.Is(err, security.ErrPrivateAddress) {
			service.WarnLog("Private address blocked: " + security.Redact(baseURL))
			respondError(ctx, fasthttp.StatusForbidden,
				"Access to private/internal networks is not allowed", CodeValidationError)
			return nil
		}

		service.WarnLog("URL blocked: " + security.Redact(baseURL))
		respondError(ctx, fasthttp.StatusForbidden,
			fmt.Sprintf("URL not allowed: %v", err), CodeValidationError)
		return nil
	}

	return client
}

func respondUpstreamError(ctx *fasthttp.RequestCtx, err error) {
	var upstream *ai.UpstreamStatusError

	switch {
	case errors.Is(err, ai.ErrRateLimited):
		respondError(ctx, fasthttp.StatusTooManyRequests, "Rate limit exceeded", CodeRateLimited)
	case errors.Is(err, ai.ErrTimeout):
		respondError(ctx, fasthttp.StatusGatewayTimeout, "Request timed out", CodeTimeout)
	case errors.As(err, &upstream):
		status := upstream.StatusCode
		if status < 400 {
			status = fasthttp.StatusBadGateway
		}
		respondError(ctx, status, security.Redact(upstream.Error()), CodeUpstreamError)
	case errors.Is(err, ai.ErrUpstream):
		respondError(ctx, fasthttp.StatusBadGateway, security.Redact(err.Error()), CodeUpstreamError)
	default:
		respondError(ctx, fasthttp.StatusBadGateway, security.Redact(err.Error()), CodeNetworkError)
	}
}

func sseErrorCode(err error) string {
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ai.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ai.ErrUpstream):
		return CodeUpstreamError
	default:
		return CodeNetworkError
	}
}

func ProxyChat(ctx *fasthttp.RequestCtx) {
	var request proxyChatRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	if request.BaseURL == "" || request.Model == "" || len(request.Messages) == 0 {
		respondError(ctx, fasthttp.StatusBadRequest,
			"base_url, model and messages are required", CodeValidationError)
		return
	}

	service.InfoLog("Proxy request: /chat -> " + security.Redact(request.BaseURL))

	client := newAIClient(ctx, request.BaseURL, request.APIKey)
	if client == nil {
		return
	}

	temperature := 0.7
	if request.Temperature != nil {
		temperature = *request.Temperature
	}

	chatRequest := ai.ChatRequest{
		Model:            request.Model,
		Messages:         request.Messages,
		Temperature:      temperature,
		MaxTokens:        request.MaxTokens,
		TopP:             request.TopP,
		FrequencyPenalty: request.FrequencyPenalty,
		PresencePenalty:  request.PresencePenalty,
		Stop:             request.Stop,
	}

	stream := true
	if request.Stream != nil {
		stream = *request.Stream
	}

	if stream {
		streamChat(ctx, client, chatRequest)
		return
	}

	response, err := client.Chat(chatRequest)
	if err != nil {
		respondUpstreamError(ctx, err)
		return
	}

	respondJSON(ctx, fasthttp.StatusOK, response)
}

// streamChat relays the upstream SSE stream chunk by chunk. Client errors
// mid-stream become an "event: error" frame since the status line is gone.
func streamChat(ctx *fasthttp.RequestCtx, client *ai.Client, chatRequest ai.ChatRequest) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.Response.Header.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		err := client.ChatStream(chatRequest, func(chunk *ai.StreamChunk) error {
			data, err := json.Marshal(chunk)
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return err
			}

			return w.Flush()
		})

		if err != nil {
			frame := map[string]string{
				"code":    sseErrorCode(err),
				"message": security.Redact(err.Error()),
			}
			data, _ := json.Marshal(frame)
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
			w.Flush()
			return
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
		w.Flush()
	})
}

func ProxyModels(ctx *fasthttp.RequestCtx) {
	var request proxyModelsRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.BaseURL == "" {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	service.InfoLog("Proxy request: /models -> " + security.Redact(request.BaseURL))

	client := newAIClient(ctx, request.BaseURL, request.APIKey)
	if client == nil {
		return
	}

	response, err := client.ListModels()
	if err != nil {
		respondUpstreamError(ctx, err)
		return
	}

	respondJSON(ctx, fasthttp.StatusOK, response)
}

func ProxyImage(ctx *fasthttp.RequestCtx) {
	var request proxyImageRequest
	if err := json.Unmarshal(ctx.PostBody(), &request); err != nil || request.BaseURL == "" || request.Prompt == "" {
		respondError(ctx, fasthttp.StatusBadRequest, "Invalid request body", CodeValidationError)
		return
	}

	service.InfoLog("Proxy request: /image -> " + security.Redact(request.BaseURL))

	client := newAIClient(ctx, request.BaseURL, request.APIKey)
	if client == nil {
		return
	}

	imageRequest := ai.NewImageRequest(request.Prompt)
	if request.Model != "" {
		imageRequest.Model = request.Model
	}
	if request.N > 0 {
		imageRequest.N = request.N
	}
	if request.Size != "" {
		imageRequest.Size = request.Size
	}
	if request.Quality != "" {
		imageRequest.Quality = request.Quality
	}
	if request.ResponseFormat != "" {
		imageRequest.ResponseFormat = request.ResponseFormat
	}
	if request.Style != "" {
		imageRequest.Style = request.Style
	}

	response, err := client.GenerateImage(imageRequest)
	if err != nil {
		respondUpstreamError(ctx, err)
		return
	}

	respondJSON(ctx, fasthttp.StatusOK, response)
}
