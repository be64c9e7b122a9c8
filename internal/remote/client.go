// Package remote implements the HTTP client the editor session syncs
// through. It satisfies sync.Remote against the internal/server API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	syncpkg "github.com/studlancer/studlancer/internal/sync"

	"github.com/studlancer/studlancer/internal/schema"
)

// Client talks to the Studlancer backend over HTTP.
type Client struct {
	baseURL string
	token   func(context.Context) (string, error)
	http    *http.Client
}

// New creates a client for the API at baseURL. token supplies the bearer
// token per request (the auth provider is an external collaborator).
func New(baseURL string, token func(context.Context) (string, error)) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// StaticToken returns a token func that always yields tok.
func StaticToken(tok string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return tok, nil }
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	tok, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// apiError extracts the server's error message from a non-2xx response.
func apiError(resp *http.Response) error {
	defer resp.Body.Close()
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// FetchDocument implements sync.Remote.
func (c *Client) FetchDocument(ctx context.Context, id string) (*schema.Document, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/documents/"+id, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, syncpkg.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	defer resp.Body.Close()

	var doc schema.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return &doc, nil
}

// CreateDocument implements sync.Remote.
func (c *Client) CreateDocument(ctx context.Context, doc *schema.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/documents", bytes.NewReader(body))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return apiError(resp)
	}
	resp.Body.Close()
	return nil
}

// UpdateAttributes implements sync.Remote. The payload is the queue wire
// format, sent opaque; the response's success flag is returned as-is.
func (c *Client) UpdateAttributes(ctx context.Context, payload string) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/update", strings.NewReader(payload))
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, apiError(resp)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode update response: %w", err)
	}
	return result.Success, nil
}

// Publish implements sync.Remote.
func (c *Client) Publish(ctx context.Context, id string) (*schema.PublishedDocument, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/documents/"+id+"/publish", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, syncpkg.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	defer resp.Body.Close()

	var pub schema.PublishedDocument
	if err := json.NewDecoder(resp.Body).Decode(&pub); err != nil {
		return nil, fmt.Errorf("failed to decode published document: %w", err)
	}
	return &pub, nil
}

// Unpublish implements sync.Remote.
func (c *Client) Unpublish(ctx context.Context, id string) error {
	return c.lifecycle(ctx, id, "unpublish")
}

// Trash implements sync.Remote.
func (c *Client) Trash(ctx context.Context, id string) error {
	return c.lifecycle(ctx, id, "trash")
}

// Restore implements sync.Remote.
func (c *Client) Restore(ctx context.Context, id string) error {
	return c.lifecycle(ctx, id, "restore")
}

func (c *Client) lifecycle(ctx context.Context, id, action string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/documents/"+id+"/"+action, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return syncpkg.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	resp.Body.Close()
	return nil
}

// RecordView reports that the current user viewed a published document.
func (c *Client) RecordView(ctx context.Context, id string) error {
	return c.lifecycle(ctx, id, "view")
}

// DeletePermanently implements sync.Remote.
func (c *Client) DeletePermanently(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/documents/"+id, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return syncpkg.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	resp.Body.Close()
	return nil
}

// Workspace implements sync.Remote.
func (c *Client) Workspace(ctx context.Context) ([]schema.WorkspaceEntry, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/workspace", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	defer resp.Body.Close()

	var entries []schema.WorkspaceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode workspace: %w", err)
	}
	return entries, nil
}
