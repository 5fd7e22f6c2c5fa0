package quack

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"cardforge/modules/security"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

/*
	HTTP client for the QuackAI character API. Authentication is cookie
	based; errors are classified into the sentinel errors below so the
	handlers can map them to response codes without string matching.
*/

const (
	DefaultBaseURL = "https://api.quack.ai"

	characterInfoPath = "/character/info"
	lorebookPath      = "/character/book"

	// Browser User-Agent, the API refuses obvious bot agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	ErrUnauthorized = errors.New("cookie invalid")
	ErrRateLimited  = errors.New("rate limited by quack api")
	ErrTimeout      = errors.New("quack api request timed out")
	ErrNetwork      = errors.New("quack api request failed")
)

// Client talks to the QuackAI API. Every request passes the egress gate
// first; a Client with a nil Policy refuses to run.
type Client struct {
	BaseURL   string
	Cookies   map[string]string
	UserAgent string
	Timeout   time.Duration
	Policy    *security.Policy

	httpClient *fasthttp.Client
}

// NewClient builds a client with defaults filled in.
func NewClient(cookies map[string]string, policy *security.Policy) *Client {
	return &Client{
		BaseURL:   DefaultBaseURL,
		Cookies:   cookies,
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
		Policy:    policy,
		httpClient: &fasthttp.Client{
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      16 * 1024,
		},
	}
}

func (c *Client) get(path, characterID string) ([]byte, error) {
	target := c.BaseURL + path + "?id=" + url.QueryEscape(characterID)

	if c.Policy == nil {
		return nil, errors.Wrap(security.ErrURLBlocked, "no egress policy configured")
	}
	if err := c.Policy.ValidateURL(target); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(target)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	if len(c.Cookies) > 0 {
		req.Header.Set("Cookie", CookieHeader(c.Cookies))
	}

	if err := c.httpClient.DoTimeout(req, resp, c.Timeout); err != nil {
		if err == fasthttp.ErrTimeout {
			return nil, ErrTimeout
		}
		return nil, errors.Wrapf(ErrNetwork, "%v", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, classifyStatus(resp.StatusCode(), resp.Body())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == fasthttp.StatusUnauthorized:
		return errors.Wrap(ErrUnauthorized, "please provide valid authentication cookies")
	case status == fasthttp.StatusForbidden:
		return errors.Wrap(ErrNetwork, "access forbidden, your ip may be blocked or cookies expired")
	case status == fasthttp.StatusTooManyRequests:
		return errors.Wrap(ErrRateLimited, "please wait before retrying")
	case status >= 500:
		return errors.Wrapf(ErrNetwork, "quack api server error (http %d)", status)
	default:
		snippet := body
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return errors.Wrapf(ErrNetwork, "http %d: %s", status, snippet)
	}
}

// checkAPIError surfaces API-level errors carried inside a 200 response
// ({"code": <nonzero>, "message": ...}).
func checkAPIError(data map[string]any) error {
	code, ok := data["code"].(float64)
	if !ok || code == 0 {
		return nil
	}

	msg, _ := data["message"].(string)
	if msg == "" {
		msg, _ = data["msg"].(string)
	}
	if msg == "" {
		msg = "unknown error"
	}

	if int(code) == 401 || strings.Contains(strings.ToLower(msg), "auth") {
		return errors.Wrapf(ErrUnauthorized, "%s", msg)
	}

	return errors.Wrapf(ErrNetwork, "api error %d: %s", int(code), msg)
}

// FetchCharacterInfo fetches the raw character info object.
func (c *Client) FetchCharacterInfo(characterID string) (map[string]any, error) {
	body, err := c.get(characterInfoPath, characterID)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrapf(ErrNetwork, "invalid response json: %v", err)
	}

	if err := checkAPIError(data); err != nil {
		return nil, err
	}

	return data, nil
}

// FetchLorebook fetches the character's world book entries. Nested
// entryList containers are flattened into one entry list.
func (c *Client) FetchLorebook(characterID string) ([]map[string]any, error) {
	body, err := c.get(lorebookPath, characterID)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		var list []map[string]any
		if err := json.Unmarshal(body, &list); err == nil {
			return list, nil
		}
		return nil, errors.Wrapf(ErrNetwork, "invalid response json: %v", err)
	}

	if err := checkAPIError(data); err != nil {
		return nil, err
	}

	return flattenLorebook(data["data"]), nil
}

func flattenLorebook(raw any) []map[string]any {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	var result []map[string]any
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		if nested, ok := entry["entryList"].([]any); ok {
			for _, n := range nested {
				if e, ok := n.(map[string]any); ok {
					result = append(result, e)
				}
			}
			continue
		}

		result = append(result, entry)
	}

	return result
}

// FetchCharacterComplete fetches info and world book in one go. A failing
// world book fetch degrades to an empty book, it never fails the import.
func (c *Client) FetchCharacterComplete(characterID string) (map[string]any, []map[string]any, error) {
	info, err := c.FetchCharacterInfo(characterID)
	if err != nil {
		return nil, nil, err
	}

	lorebook, err := c.FetchLorebook(characterID)
	if err != nil {
		lorebook = nil
	}

	return info, lorebook, nil
}
