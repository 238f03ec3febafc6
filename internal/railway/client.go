// Package railway is a GraphQL client for the Railway API that provides
// account earnings and workspace templates.
package railway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"railway-template-metrics/internal/domain"
	"railway-template-metrics/internal/ingestion"
)

// Default configuration values.
const (
	DefaultEndpoint    = "https://backboard.railway.com/graphql/internal"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client fetches earnings and templates over GraphQL with retries and exponential backoff.
type Client struct {
	endpoint    string
	token       string
	customerID  string
	workspaceID string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      log.FieldLogger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithEndpoint overrides the GraphQL endpoint.
func WithEndpoint(url string) ClientOption {
	return func(c *Client) {
		c.endpoint = url
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger log.FieldLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client authenticated with a bearer token.
// customerID scopes earnings queries, workspaceID scopes template queries.
func NewClient(token, customerID, workspaceID string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    DefaultEndpoint,
		token:       token,
		customerID:  customerID,
		workspaceID: workspaceID,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ ingestion.EarningsSource = (*Client)(nil)
	_ ingestion.TemplateSource = (*Client)(nil)
)

// graphqlRequest is a GraphQL POST body.
type graphqlRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// graphqlResponse is a GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors,omitempty"`
}

// GraphQLError is one entry of a GraphQL errors array.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLErrors is returned when the server answers with a non-empty errors array.
// Such responses are not retried.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ge := range e {
		msgs[i] = ge.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// errRetryable marks failures worth another attempt.
var errRetryable = errors.New("retryable")

// query performs a GraphQL call with retries and exponential backoff.
func (c *Client) query(ctx context.Context, operation, query string, variables map[string]any, result any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables, OperationName: operation})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(log.Fields{
				"operation": operation,
				"attempt":   attempt,
				"delay":     delay,
			}).WithError(lastErr).Warn("retrying railway request")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		err := c.do(ctx, body, result)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errRetryable) {
			return fmt.Errorf("%s: %w", operation, err)
		}
		lastErr = err
	}

	return fmt.Errorf("%s: max retries exceeded: %w", operation, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: http request: %v", errRetryable, err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("%w: read response: %v", errRetryable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited (429)", errRetryable)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: unexpected status %d: %s", errRetryable, resp.StatusCode, truncate(respBody))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return gqlResp.Errors
	}

	if result != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

const earningsQuery = `
query withdrawalData($customerId: String!) {
  earningDetails(customerId: $customerId) {
    lifetimeEarnings
    referralEarningsLifetime
    referralEarnings30d
    templateEarningsLifetime
    templateEarnings30d
    bountyEarningsLifetime
    bountyEarnings30d
    threadEarningsLifetime
    threadEarnings30d
    availableBalance
    lifetimeCashWithdrawals
    lifetimeCreditWithdrawals
  }
}`

// FetchEarnings retrieves the account earnings record.
func (c *Client) FetchEarnings(ctx context.Context) (*domain.EarningsRecord, error) {
	var data struct {
		EarningDetails *domain.EarningsRecord `json:"earningDetails"`
	}
	vars := map[string]any{"customerId": c.customerID}
	if err := c.query(ctx, "withdrawalData", earningsQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.EarningDetails == nil {
		return nil, errors.New("withdrawalData: response has no earningDetails")
	}
	return data.EarningDetails, nil
}

const templatesQuery = `
query workspaceTemplates($workspaceId: String!) {
  workspaceTemplates(workspaceId: $workspaceId) {
    edges {
      node {
        id
        code
        name
        description
        image
        category
        tags
        languages
        status
        isApproved
        isVerified
        health
        projects
        activeProjects
        recentProjects
        totalPayout
      }
    }
  }
}`

// templateNode mirrors the GraphQL template node.
type templateNode struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Image          string          `json:"image"`
	Category       string          `json:"category"`
	Tags           []string        `json:"tags"`
	Languages      []string        `json:"languages"`
	Status         string          `json:"status"`
	IsApproved     bool            `json:"isApproved"`
	IsVerified     bool            `json:"isVerified"`
	Health         json.RawMessage `json:"health"`
	Projects       int64           `json:"projects"`
	ActiveProjects int64           `json:"activeProjects"`
	RecentProjects int64           `json:"recentProjects"`
	TotalPayout    int64           `json:"totalPayout"`
}

// FetchTemplates retrieves every template of the workspace.
func (c *Client) FetchTemplates(ctx context.Context) ([]*ingestion.RawTemplate, error) {
	var data struct {
		WorkspaceTemplates struct {
			Edges []struct {
				Node templateNode `json:"node"`
			} `json:"edges"`
		} `json:"workspaceTemplates"`
	}
	vars := map[string]any{"workspaceId": c.workspaceID}
	if err := c.query(ctx, "workspaceTemplates", templatesQuery, vars, &data); err != nil {
		return nil, err
	}

	templates := make([]*ingestion.RawTemplate, 0, len(data.WorkspaceTemplates.Edges))
	for _, edge := range data.WorkspaceTemplates.Edges {
		n := edge.Node
		templates = append(templates, &ingestion.RawTemplate{
			TemplateRecord: domain.TemplateRecord{
				ID:             n.ID,
				Code:           n.Code,
				Name:           n.Name,
				Description:    n.Description,
				Category:       n.Category,
				Image:          n.Image,
				Status:         n.Status,
				IsApproved:     n.IsApproved,
				IsVerified:     n.IsVerified,
				Tags:           n.Tags,
				Languages:      n.Languages,
				Projects:       n.Projects,
				ActiveProjects: n.ActiveProjects,
				RecentProjects: n.RecentProjects,
				TotalPayout:    n.TotalPayout,
			},
			RawHealth: rawHealth(n.Health),
		})
	}
	return templates, nil
}

// rawHealth maps an absent health field to JSON null, which normalizes to 0.
func rawHealth(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return json.RawMessage("null")
	}
	return raw
}
