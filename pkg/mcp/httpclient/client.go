// Package httpclient is the HTTP fallback MCP client: functionally
// interchangeable with pkg/mcp/client's embedded client, but talks to a
// remote runtime over the wire instead of calling pkg/mcp/tools in-process.
// Grounded on the teacher's own client-to-sibling-service style (base URL
// plus path joining, bearer auth, JSON request/response bodies), generalized
// to the MCP tool and context routes and wrapped in the project's retry
// helper for transient upstream failures.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
	"github.com/mratomo/graphrag-engine/pkg/mcp/tools"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/retry"
)

// ClientType identifies this client in every response it returns.
const ClientType = "http"

// DefaultTimeout is the maximum time to wait for a single request.
const DefaultTimeout = 30 * time.Second

// Client calls the MCP tool and context routes over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      *retry.Config
	logger     *zap.Logger
}

// New constructs an HTTP fallback Client. baseURL is the MCP runtime's
// address (e.g. "http://localhost:8080"); token, if non-empty, is sent as a
// bearer credential on every request.
func New(baseURL, token string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retry:      retry.DefaultConfig(),
		logger:     logger.Named("mcp_httpclient"),
	}
}

// StoreDocumentResult wraps a store_document response with the client_type
// tag that lets a caller distinguish this path from the embedded client.
type StoreDocumentResult struct {
	tools.StoreDocumentResponse
	ClientType string `json:"client_type"`
}

// StoreDocument calls POST /mcp/tools/store-document.
func (c *Client) StoreDocument(ctx context.Context, information string, metadata map[string]string) (*StoreDocumentResult, error) {
	reqBody := struct {
		Information string            `json:"information"`
		Metadata    map[string]string `json:"metadata,omitempty"`
	}{Information: information, Metadata: metadata}

	var result StoreDocumentResult
	if err := c.doJSON(ctx, http.MethodPost, []string{"mcp", "tools", "store-document"}, reqBody, &result); err != nil {
		return nil, err
	}
	result.ClientType = ClientType
	return &result, nil
}

// FindRelevantResult wraps a find_relevant response with the client_type tag.
type FindRelevantResult struct {
	Results    []tools.FindRelevantResult `json:"results"`
	ClientType string                     `json:"client_type"`
}

// FindRelevant calls POST /mcp/tools/find-relevant.
func (c *Client) FindRelevant(ctx context.Context, query, embeddingType, ownerID, areaID string, limit int) (*FindRelevantResult, error) {
	reqBody := struct {
		Query         string `json:"query"`
		EmbeddingType string `json:"embedding_type,omitempty"`
		OwnerID       string `json:"owner_id,omitempty"`
		AreaID        string `json:"area_id,omitempty"`
		Limit         int    `json:"limit,omitempty"`
	}{Query: query, EmbeddingType: embeddingType, OwnerID: ownerID, AreaID: areaID, Limit: limit}

	var result FindRelevantResult
	if err := c.doJSON(ctx, http.MethodPost, []string{"mcp", "tools", "find-relevant"}, reqBody, &result); err != nil {
		return nil, err
	}
	result.ClientType = ClientType
	return &result, nil
}

// ActiveContextsResult wraps a get_active_contexts response.
type ActiveContextsResult struct {
	Contexts   []*models.Context `json:"contexts"`
	ClientType string            `json:"client_type"`
}

// ActiveContexts calls GET /mcp/active-contexts, optionally filtered by the
// metadata "type" query parameter.
func (c *Client) ActiveContexts(ctx context.Context, metadataType string) (*ActiveContextsResult, error) {
	endpoint, err := c.buildURL([]string{"mcp", "active-contexts"})
	if err != nil {
		return nil, err
	}
	if metadataType != "" {
		q := url.Values{}
		q.Set("type", metadataType)
		endpoint += "?" + q.Encode()
	}

	var result ActiveContextsResult
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	result.ClientType = ClientType
	return &result, nil
}

// doJSON builds the endpoint from path segments and marshals body as the
// request payload; use do directly when the caller already has a full URL
// (ActiveContexts needs to append a query string after the path join).
func (c *Client) doJSON(ctx context.Context, method string, pathSegments []string, body, out any) error {
	endpoint, err := c.buildURL(pathSegments)
	if err != nil {
		return err
	}
	return c.do(ctx, method, endpoint, body, out)
}

// do executes a single HTTP request with retry, decoding a JSON response
// into out. Only transient failures (network errors, 5xx, 429) are retried;
// retry.Do's IsRetryable classification is applied per attempt via the
// error message, matching the pattern pkg/llm already uses for upstream
// calls.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	return retry.DoIfRetryable(ctx, c.retry, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call mcp runtime: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Error("mcp runtime returned error",
				zap.String("url", endpoint),
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(respBody)))
			return apperrors.Wrap(kindForStatus(resp.StatusCode),
				fmt.Sprintf("mcp runtime returned status %d", resp.StatusCode),
				fmt.Errorf("%s", respBody))
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return nil
	})
}

// kindForStatus maps an HTTP status back to an apperrors.Kind so a caller
// one layer up can treat an httpclient failure the same way it would treat
// the embedded client returning the equivalent structured error.
func kindForStatus(status int) apperrors.Kind {
	switch status {
	case http.StatusNotFound:
		return apperrors.KindNotFound
	case http.StatusConflict:
		return apperrors.KindConflict
	case http.StatusBadRequest:
		return apperrors.KindValidation
	case http.StatusUnprocessableEntity:
		return apperrors.KindUnsupported
	case http.StatusTooManyRequests:
		return apperrors.KindRateLimited
	case http.StatusGatewayTimeout:
		return apperrors.KindTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return apperrors.KindUpstream
	default:
		return apperrors.KindInternal
	}
}

// buildURL joins baseURL with pathSegments, matching the teacher's
// url.Parse-plus-path.Join convention for sibling-service clients.
func (c *Client) buildURL(pathSegments []string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)
	return u.String(), nil
}
