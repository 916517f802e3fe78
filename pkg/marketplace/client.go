// Package marketplace wraps the Sharetribe Flex API behind per-tenant
// credentials. Each tenant's marketplace is a separate Sharetribe
// instance; the client exchanges the tenant's client credentials for a
// short-lived access token and caches it until shortly before expiry.
package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gradlink-backend/pkg/faults"
	"gradlink-backend/pkg/models"
)

const (
	tokenPath        = "/v1/auth/token"
	integrationScope = "integ"
	// tokens are refreshed this long before they actually expire
	tokenSlack = 30 * time.Second
)

// Client talks to the Sharetribe Flex Integration API on behalf of one
// tenant at a time. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[string]cachedToken // keyed by client id
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

type apiError struct {
	Errors []struct {
		Status int    `json:"status"`
		Code   string `json:"code"`
		Title  string `json:"title"`
	} `json:"errors"`
}

// Page selects a slice of a collection listing.
type Page struct {
	Number  int
	PerPage int
}

// QueryResult is the raw API payload for a collection query. Responses
// are passed through untyped because each tenant's marketplace defines
// its own extended data schema.
type QueryResult struct {
	Data []map[string]any `json:"data"`
	Meta struct {
		TotalItems int `json:"totalItems"`
		TotalPages int `json:"totalPages"`
		Page       int `json:"page"`
		PerPage    int `json:"perPage"`
	} `json:"meta"`
}

// NewClient builds a client against the given API base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		logger: logger,
		tokens: map[string]cachedToken{},
	}
}

// VerifyCredentials exchanges the credentials for a token without caching
// it, reporting whether they are usable.
func (c *Client) VerifyCredentials(ctx context.Context, creds models.SharetribeCredentials) error {
	_, err := c.exchangeToken(ctx, creds)
	return err
}

// QueryUsers lists the tenant marketplace's users.
func (c *Client) QueryUsers(ctx context.Context, creds models.SharetribeCredentials, page Page) (*QueryResult, error) {
	return c.query(ctx, creds, "/v1/integration_api/users/query", page, nil)
}

// QueryListings lists the tenant marketplace's listings.
func (c *Client) QueryListings(ctx context.Context, creds models.SharetribeCredentials, page Page) (*QueryResult, error) {
	return c.query(ctx, creds, "/v1/integration_api/listings/query", page, nil)
}

// QueryTransactions lists the tenant marketplace's transactions.
func (c *Client) QueryTransactions(ctx context.Context, creds models.SharetribeCredentials, page Page) (*QueryResult, error) {
	return c.query(ctx, creds, "/v1/integration_api/transactions/query", page, nil)
}

// CreateUser provisions a marketplace user, used when an accepted alumni
// invitation needs an account on the tenant's marketplace.
func (c *Client) CreateUser(ctx context.Context, creds models.SharetribeCredentials, email, firstName, lastName string) (map[string]any, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	var out struct {
		Data map[string]any `json:"data"`
	}
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"email":     email,
			"firstName": firstName,
			"lastName":  lastName,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/integration_api/users/create")
	if err != nil {
		return nil, faults.New(faults.KindUnavailable, "marketplace platform unreachable: %v", err)
	}
	if resp.IsError() {
		return nil, c.classify(resp, &apiErr)
	}
	return out.Data, nil
}

func (c *Client) query(ctx context.Context, creds models.SharetribeCredentials, path string, page Page, params map[string]string) (*QueryResult, error) {
	token, err := c.token(ctx, creds)
	if err != nil {
		return nil, err
	}

	if page.Number < 1 {
		page.Number = 1
	}
	if page.PerPage < 1 {
		page.PerPage = 20
	}

	var out QueryResult
	var apiErr apiError

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("page", fmt.Sprint(page.Number)).
		SetQueryParam("perPage", fmt.Sprint(page.PerPage)).
		SetResult(&out).
		SetError(&apiErr)
	for k, v := range params {
		req.SetQueryParam(k, v)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, faults.New(faults.KindUnavailable, "marketplace platform unreachable: %v", err)
	}
	if resp.IsError() {
		return nil, c.classify(resp, &apiErr)
	}
	return &out, nil
}

// token returns a cached access token for the credentials, exchanging a
// fresh one when the cache is empty or close to expiry.
func (c *Client) token(ctx context.Context, creds models.SharetribeCredentials) (string, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return "", faults.Statef("tenant has no marketplace credentials configured")
	}

	c.mu.Lock()
	cached, ok := c.tokens[creds.ClientID]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	tok, err := c.exchangeToken(ctx, creds)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.tokens[creds.ClientID] = cachedToken{
		value:     tok.AccessToken,
		expiresAt: time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack),
	}
	c.mu.Unlock()

	return tok.AccessToken, nil
}

func (c *Client) exchangeToken(ctx context.Context, creds models.SharetribeCredentials) (*tokenResponse, error) {
	var tok tokenResponse
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     creds.ClientID,
			"client_secret": creds.ClientSecret,
			"scope":         integrationScope,
		}).
		SetResult(&tok).
		SetError(&apiErr).
		Post(tokenPath)
	if err != nil {
		return nil, faults.New(faults.KindUnavailable, "marketplace auth unreachable: %v", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusBadRequest {
			return nil, faults.New(faults.KindUnauthorized, "marketplace rejected tenant credentials")
		}
		return nil, c.classify(resp, &apiErr)
	}
	if tok.AccessToken == "" {
		return nil, faults.Internalf("marketplace auth returned empty token")
	}
	return &tok, nil
}

func (c *Client) classify(resp *resty.Response, apiErr *apiError) error {
	detail := ""
	if apiErr != nil && len(apiErr.Errors) > 0 {
		detail = apiErr.Errors[0].Title
	}

	c.logger.Warn("marketplace api error",
		zap.Int("status", resp.StatusCode()),
		zap.String("detail", detail))

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return faults.New(faults.KindUnauthorized, "marketplace authorization failed: %s", detail)
	case resp.StatusCode() == http.StatusNotFound:
		return faults.NotFoundf("marketplace resource not found: %s", detail)
	case resp.StatusCode() == http.StatusConflict:
		return faults.Conflictf("marketplace conflict: %s", detail)
	case resp.StatusCode() == http.StatusTooManyRequests:
		return faults.New(faults.KindRateLimited, "marketplace rate limit hit")
	case resp.StatusCode() >= 500:
		return faults.New(faults.KindUnavailable, "marketplace platform error: status=%d", resp.StatusCode())
	default:
		return faults.Validationf("marketplace rejected request: status=%d %s", resp.StatusCode(), detail)
	}
}
