package ai

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"cardforge/modules/security"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

/*
	Client for OpenAI-compatible upstreams (chat completions, model list,
	image generation). The destination URL is gated once at construction;
	upstream error bodies are redacted before they can reach a log line or
	an error response.
*/

const (
	chatCompletionsPath = "/v1/chat/completions"
	modelsPath          = "/v1/models"
	imagesPath          = "/v1/images/generations"

	// Upstream responses larger than this abort the request.
	DefaultMaxResponseSize = 50 * 1024 * 1024
)

var (
	ErrUpstream    = errors.New("upstream api error")
	ErrNetwork     = errors.New("upstream network error")
	ErrTimeout     = errors.New("upstream request timed out")
	ErrRateLimited = errors.New("upstream rate limit exceeded")
)

// UpstreamStatusError carries the upstream HTTP status alongside the
// (redacted) response body. errors.Is matches it against ErrUpstream.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamStatusError) Error() string {
	return "upstream api error (http " + strconv.Itoa(e.StatusCode) + "): " + e.Body
}

func (e *UpstreamStatusError) Is(target error) bool {
	return target == ErrUpstream
}

// Client talks to one upstream base URL with one API key.
type Client struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxResponseSize int

	httpClient   *fasthttp.Client
	streamClient *fasthttp.Client
}

// NewClient validates the destination against the egress policy before
// anything leaves the process.
func NewClient(baseURL, apiKey string, policy *security.Policy) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	if policy == nil {
		return nil, errors.Wrap(security.ErrURLBlocked, "no egress policy configured")
	}
	if err := policy.ValidateURL(baseURL); err != nil {
		return nil, err
	}

	timeout := 60 * time.Second

	return &Client{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		Timeout:         timeout,
		MaxResponseSize: DefaultMaxResponseSize,
		httpClient: &fasthttp.Client{
			MaxIdleConnDuration: 60 * time.Second,
		},
		streamClient: &fasthttp.Client{
			StreamResponseBody: true,
			ReadTimeout:        timeout,
			WriteTimeout:       timeout,
		},
	}, nil
}

func (c *Client) prepare(req *fasthttp.Request, method, path string, payload any) error {
	req.SetRequestURI(c.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.SetContentType("application/json")

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(ErrNetwork, "encode request: %v", err)
		}
		req.SetBody(body)
	}

	return nil
}

func (c *Client) do(method, path string, payload any) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.prepare(req, method, path, payload); err != nil {
		return nil, err
	}

	if err := c.httpClient.DoTimeout(req, resp, c.Timeout); err != nil {
		if err == fasthttp.ErrTimeout {
			return nil, ErrTimeout
		}
		return nil, errors.Wrapf(ErrNetwork, "%v", err)
	}

	if err := statusError(resp.StatusCode(), resp.Body()); err != nil {
		return nil, err
	}

	if len(resp.Body()) > c.MaxResponseSize {
		return nil, errors.Wrap(ErrUpstream, "response too large")
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func statusError(status int, body []byte) error {
	if status == fasthttp.StatusTooManyRequests {
		return ErrRateLimited
	}
	if status >= 400 {
		return &UpstreamStatusError{
			StatusCode: status,
			Body:       security.Redact(string(body)),
		}
	}
	return nil
}

// Chat sends a blocking chat completion request.
func (c *Client) Chat(request ChatRequest) (*ChatResponse, error) {
	request.Stream = false

	body, err := c.do(fasthttp.MethodPost, chatCompletionsPath, request)
	if err != nil {
		return nil, err
	}

	var response ChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(ErrUpstream, "invalid response json: %v", err)
	}

	return &response, nil
}

// ChatStream sends a streaming chat completion request and calls fn for
// every chunk until the upstream sends [DONE] or the stream ends. An
// error returned by fn aborts the stream and is passed through.
func (c *Client) ChatStream(request ChatRequest, fn func(*StreamChunk) error) error {
	request.Stream = true

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := c.prepare(req, fasthttp.MethodPost, chatCompletionsPath, request); err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	if err := c.streamClient.Do(req, resp); err != nil {
		if err == fasthttp.ErrTimeout {
			return ErrTimeout
		}
		return errors.Wrapf(ErrNetwork, "%v", err)
	}

	if resp.StatusCode() >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.BodyStream(), 64*1024))
		return statusError(resp.StatusCode(), body)
	}

	reader := bufio.NewReader(resp.BodyStream())
	read := 0

	for {
		line, err := reader.ReadString('\n')
		read += len(line)
		if read > c.MaxResponseSize {
			return errors.Wrap(ErrUpstream, "response too large")
		}

		if chunk, done, ok := parseSSELine(line); ok {
			if done {
				return nil
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(ErrNetwork, "%v", err)
		}
	}
}

// parseSSELine handles one server-sent-events line. done is set for the
// [DONE] marker; ok is false for blanks, comments and undecodable data.
func parseSSELine(line string) (chunk *StreamChunk, done bool, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data: ") {
		return nil, false, false
	}

	payload := line[len("data: "):]
	if payload == "[DONE]" {
		return nil, true, true
	}

	var c StreamChunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, false, false
	}

	return &c, false, true
}

// ListModels fetches the upstream model list.
func (c *Client) ListModels() (*ModelsResponse, error) {
	body, err := c.do(fasthttp.MethodGet, modelsPath, nil)
	if err != nil {
		return nil, err
	}

	var response ModelsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(ErrUpstream, "invalid response json: %v", err)
	}

	return &response, nil
}

// GenerateImage sends an image generation request.
func (c *Client) GenerateImage(request ImageRequest) (*ImageResponse, error) {
	body, err := c.do(fasthttp.MethodPost, imagesPath, request)
	if err != nil {
		return nil, err
	}

	var response ImageResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(ErrUpstream, "invalid response json: %v", err)
	}

	return &response, nil
}
