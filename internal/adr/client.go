// Package adr implements the HTTP client for the downstream Automated
// Document Retrieval service that OrchestratorCore drives through the
// credential-check, scrape, and status-poll stages. ADR is treated as an
// opaque black box: this package only knows the wire contract, not the
// service's internals.
package adr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Request type ids accepted by IngestAdrRequest's ADRRequestTypeId field.
const (
	RequestTypeAttemptLogin     = 1
	RequestTypeDownloadInvoice  = 2
	RequestTypeRebill           = 3
)

// Status ids returned by ADR, per the status-mapping table.
const (
	StatusDocumentRetrievalComplete = 11
	StatusNeedsHumanReview          = 9
	StatusLoginSucceeded            = 12
)

// finalStatuses are status ids ADR reports as terminal regardless of
// stream (credential vs scrape).
var finalStatuses = map[int]bool{
	11: true, 9: true, 12: true,
	3: true, 4: true, 5: true, 7: true, 8: true, 14: true,
}

// errorStatuses are credential/AI/queue/save error ids — terminal failure
// on whichever stream the job belongs to.
var errorStatuses = map[int]bool{3: true, 4: true, 5: true, 7: true, 8: true, 14: true}

// IsFinal derives finality from the status id per the status-mapping table,
// used when ADR's response omits the IsFinal field.
func IsFinal(statusID int) bool {
	return finalStatuses[statusID]
}

// IsErrorStatus reports whether statusID is one of the credential/AI/
// queue/save error ids.
func IsErrorStatus(statusID int) bool {
	return errorStatuses[statusID]
}

// HTTPError represents a non-2xx response from ADR.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ADR HTTP %d: %s (%s)", e.StatusCode, e.Body, e.URL)
}

// NetworkError represents a transport-level failure reaching ADR.
type NetworkError struct {
	URL        string
	Underlying error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("ADR network error: %v (%s)", e.Underlying, e.URL)
}

// ParseError represents a response body ADR sent that this client could
// not interpret under any of the accepted shapes.
type ParseError struct {
	URL        string
	Underlying error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ADR parse error: %v (%s)", e.Underlying, e.URL)
}

// IngestRequest is the exact wire body for POST /IngestAdrRequest. Field
// names are wire-compatible with the ADR service and must not be renamed.
type IngestRequest struct {
	ADRRequestTypeId      int    `json:"ADRRequestTypeId"`
	CredentialId          int    `json:"CredentialId"`
	StartDate             string `json:"StartDate"`
	EndDate               string `json:"EndDate"`
	SourceApplicationName string `json:"SourceApplicationName"`
	RecipientEmail        string `json:"RecipientEmail"`
	JobId                 int    `json:"JobId"`
	AccountId             int64  `json:"AccountId"`
	InterfaceAccountId    string `json:"InterfaceAccountId,omitempty"`
	IsLastAttempt         bool   `json:"IsLastAttempt"`
}

// StatusResponse is the normalized shape this client produces regardless of
// which of the accepted wire shapes ADR actually sent.
type StatusResponse struct {
	StatusID          int
	StatusDescription string
	IndexID           int
	IsError           bool
	IsFinal           bool
}

// rawStatusResponse mirrors the documented JSON object shape; Status
// substitutes for StatusDescription when present, and IsFinal is derived
// when the field is absent.
type rawStatusResponse struct {
	StatusID          *int    `json:"statusId"`
	StatusDescription *string `json:"statusDescription"`
	Status            *string `json:"Status"`
	IndexID           *int    `json:"indexId"`
	IsError           *bool   `json:"isError"`
	IsFinal           *bool   `json:"isFinal"`
}

// Client drives the ADR HTTP contract. It has no built-in retry: the spec
// reserves retry to job-level re-selection on the next orchestration run,
// not within a single call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.SugaredLogger
}

// DefaultTimeout is the per-call transport timeout; the core never retries
// within a single call.
const DefaultTimeout = 300 * time.Second

// NewClient builds a Client against baseURL with the transport tuned for a
// moderate concurrent fan-out (max_parallel_requests, default 8).
func NewClient(baseURL string, logger *zap.SugaredLogger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		MaxConnsPerHost:     32,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: DefaultTimeout,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: DefaultTimeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// IngestAdrRequest performs the POST /IngestAdrRequest call. On a non-2xx
// response whose body still decodes to a status shape carrying an
// IndexID, both the error and the parsed response are returned so the
// caller can record the index even though the call failed.
func (c *Client) IngestAdrRequest(ctx context.Context, req *IngestRequest) (*StatusResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingest request: %w", err)
	}

	url := c.baseURL + "/IngestAdrRequest"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build ingest request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: url, Underlying: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Underlying: err}
	}

	parsed, parseErr := parseStatusBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: truncate(string(raw), 500)}
		if parseErr == nil && parsed.IndexID != 0 {
			// ADR reported an index even though the call failed — the
			// caller still wants to record it.
			return parsed, httpErr
		}
		return nil, httpErr
	}

	if parseErr != nil {
		return nil, &ParseError{URL: url, Underlying: parseErr}
	}
	return parsed, nil
}

// GetRequestStatusByJobID performs the GET /GetRequestStatusByJobId/{id}
// call.
func (c *Client) GetRequestStatusByJobID(ctx context.Context, jobID int) (*StatusResponse, error) {
	url := fmt.Sprintf("%s/GetRequestStatusByJobId/%d", c.baseURL, jobID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: url, Underlying: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Underlying: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: truncate(string(raw), 1000)}
	}

	parsed, err := parseStatusBody(raw)
	if err != nil {
		return nil, &ParseError{URL: url, Underlying: err}
	}
	return parsed, nil
}

// parseStatusBody accepts, in order: empty body (success, no status);
// a JSON object; a JSON array (first element); a bare integer (indexId
// only). Any other shape is a ParseError candidate.
func parseStatusBody(raw []byte) (*StatusResponse, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return &StatusResponse{}, nil
	}

	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("failed to parse array response: %w", err)
		}
		if len(arr) == 0 {
			return &StatusResponse{}, nil
		}
		return parseStatusObject(arr[0])
	}

	if trimmed[0] == '{' {
		return parseStatusObject(trimmed)
	}

	if n, err := strconv.Atoi(string(trimmed)); err == nil {
		return &StatusResponse{IndexID: n}, nil
	}

	return nil, fmt.Errorf("response body is neither empty, object, array, nor integer: %s", truncate(string(raw), 200))
}

func parseStatusObject(raw json.RawMessage) (*StatusResponse, error) {
	var obj rawStatusResponse
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse status object: %w", err)
	}

	out := &StatusResponse{}
	if obj.StatusID != nil {
		out.StatusID = *obj.StatusID
	}
	switch {
	case obj.StatusDescription != nil:
		out.StatusDescription = *obj.StatusDescription
	case obj.Status != nil:
		out.StatusDescription = *obj.Status
	}
	if obj.IndexID != nil {
		out.IndexID = *obj.IndexID
	}
	if obj.IsError != nil {
		out.IsError = *obj.IsError
	}
	if obj.IsFinal != nil {
		out.IsFinal = *obj.IsFinal
	} else {
		out.IsFinal = IsFinal(out.StatusID)
	}
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
