package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/viant/office/query"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0/me"

// Executor dispatches compiled queries against Microsoft Graph over REST with
// OData query options. It implements query.Executor and query.Counter.
type Executor struct {
	manager *Manager
	account Account
	scopes  []string
	prompt  func(string)

	// BaseURL defaults to the Graph /me resource; tests override it.
	BaseURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Authorize returns a bearer token; replaced in tests.
	Authorize func(ctx context.Context) (string, error)
}

// NewExecutor returns an executor bound to one account. The prompt callback
// surfaces a device-code message when interactive login is required.
func NewExecutor(manager *Manager, account Account, scopes []string, prompt func(string)) *Executor {
	e := &Executor{
		manager: manager,
		account: account,
		scopes:  scopes,
		prompt:  prompt,
		BaseURL: defaultBaseURL,
	}
	e.Authorize = func(ctx context.Context) (string, error) {
		cred, err := manager.Credential(ctx, account.Alias, account.TenantID, scopes, prompt)
		if err != nil {
			return "", err
		}
		token, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: scopes})
		if err != nil {
			return "", err
		}
		return token.Token, nil
	}
	return e
}

// Account returns the account this executor is bound to.
func (e *Executor) Account() Account { return e.account }

// Client returns the SDK client for operations modeled by msgraph-sdk-go.
func (e *Executor) Client(ctx context.Context) (*msgraphsdk.GraphServiceClient, error) {
	return e.manager.Client(ctx, e.account.Alias, e.account.TenantID, e.scopes, e.prompt)
}

func (e *Executor) httpClient() *http.Client {
	if e.HTTPClient != nil {
		return e.HTTPClient
	}
	return http.DefaultClient
}

func (e *Executor) values(request *query.Request) neturl.Values {
	values := neturl.Values{}
	if request.Filter != "" {
		values.Set("$filter", request.Filter)
	}
	if len(request.OrderBy) > 0 {
		values.Set("$orderby", strings.Join(request.OrderBy, ","))
	}
	if len(request.Select) > 0 {
		values.Set("$select", strings.Join(request.Select, ","))
	}
	if request.Top > 0 {
		values.Set("$top", strconv.Itoa(request.Top))
	}
	return values
}

// Execute dispatches a compiled request and returns its first page.
func (e *Executor) Execute(ctx context.Context, request *query.Request) (*query.Page, error) {
	URL := e.BaseURL + "/" + strings.TrimPrefix(request.Entity, "/")
	if encoded := e.values(request).Encode(); encoded != "" {
		URL += "?" + encoded
	}
	return e.fetchPage(ctx, URL)
}

// Fetch continues pagination using the @odata.nextLink of a previous page.
func (e *Executor) Fetch(ctx context.Context, nextLink string) (*query.Page, error) {
	return e.fetchPage(ctx, nextLink)
}

func (e *Executor) fetchPage(ctx context.Context, URL string) (*query.Page, error) {
	data, err := e.call(ctx, http.MethodGet, URL, nil, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Value    []query.Record `json:"value"`
		NextLink string         `json:"@odata.nextLink"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &query.Page{Records: payload.Value, NextLink: payload.NextLink}, nil
}

// Count performs a native $count request; records are never materialized.
func (e *Executor) Count(ctx context.Context, request *query.Request) (int, error) {
	URL := e.BaseURL + "/" + strings.TrimPrefix(request.Entity, "/") + "/$count"
	if request.Filter != "" {
		URL += "?" + neturl.Values{"$filter": []string{request.Filter}}.Encode()
	}
	// Graph requires eventual consistency for $count on most entities.
	data, err := e.call(ctx, http.MethodGet, URL, nil, map[string]string{"ConsistencyLevel": "eventual"})
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return count, nil
}

// Call performs an authorized JSON request against a path relative to the
// executor base resource and decodes the response into out when non-nil.
// Write operations of the mail/contacts/calendar services go through here.
func (e *Executor) Call(ctx context.Context, method, path string, payload, out interface{}) error {
	URL := e.BaseURL + "/" + strings.TrimPrefix(path, "/")
	var body io.Reader
	headers := map[string]string{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		headers["Content-Type"] = "application/json"
	}
	data, err := e.call(ctx, method, URL, body, headers)
	if err != nil {
		return err
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (e *Executor) call(ctx context.Context, method, URL string, body io.Reader, headers map[string]string) ([]byte, error) {
	token, err := e.Authorize(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, method, URL, body)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		request.Header.Set(k, v)
	}
	response, err := e.httpClient().Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	if response.StatusCode >= 300 {
		return nil, graphError(response.StatusCode, data)
	}
	return data, nil
}

// graphError maps a Graph failure to the query error taxonomy: a 400 with an
// OData error body means the remote schema rejected the compiled query.
func graphError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	if status == http.StatusBadRequest && payload.Error.Code != "" {
		return &query.QueryError{Code: payload.Error.Code, Message: payload.Error.Message}
	}
	if payload.Error.Code != "" {
		return fmt.Errorf("graph request failed: %d %s: %s", status, payload.Error.Code, payload.Error.Message)
	}
	return fmt.Errorf("graph request failed: %d", status)
}
