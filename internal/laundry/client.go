// Package laundry is the client for the laundry backend. Every call goes
// through the authorized HTTP client and returns the backend's result as is.
package laundry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/dukerupert/laundrydash/internal/model"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// maxErrorBody bounds how much of an error response is kept as the message.
const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// UploadResult is the acknowledgement of a file upload.
type UploadResult struct {
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	public     *http.Client
}

// New returns a backend client. authorized carries the bearer credential of
// the caller; public is used for the sign-in exchange, which authenticates
// with the identity provider's token instead.
func New(baseURL string, authorized, public *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if public == nil {
		public = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: authorized,
		public:     public,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadRevenue sends a revenue spreadsheet to /upload.
func (c *Client) UploadRevenue(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var res UploadResult
	if err := c.upload(ctx, "/upload", filename, r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadTransactions sends a raw-material transaction spreadsheet and returns
// the backend's summary.
func (c *Client) UploadTransactions(ctx context.Context, filename string, r io.Reader) (*model.MaterialSummary, error) {
	var res model.MaterialSummary
	if err := c.upload(ctx, "/upload-transactions", filename, r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadBonus sends a bonus spreadsheet to /upload-bonus.
func (c *Client) UploadBonus(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var res UploadResult
	if err := c.upload(ctx, "/upload-bonus", filename, r, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) BonusList(ctx context.Context) (model.BonusList, error) {
	var list model.BonusList
	if err := c.doJSON(ctx, http.MethodGet, "/bonus-list", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Totals(ctx context.Context) (*model.Totals, error) {
	var totals model.Totals
	if err := c.doJSON(ctx, http.MethodGet, "/totals", nil, &totals); err != nil {
		return nil, err
	}
	return &totals, nil
}

func (c *Client) ListServiceTypes(ctx context.Context) ([]model.ServiceType, error) {
	var types []model.ServiceType
	if err := c.doJSON(ctx, http.MethodGet, "/tipe-layanan", nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func (c *Client) CreateServiceType(ctx context.Context, st model.ServiceType) error {
	st.ID = ""
	return c.doJSON(ctx, http.MethodPost, "/tipe-layanan", st, nil)
}

func (c *Client) UpdateServiceType(ctx context.Context, st model.ServiceType) error {
	if st.ID == "" {
		return errors.New("update service type: id is required")
	}
	return c.doJSON(ctx, http.MethodPut, serviceTypePath(st.ID), st, nil)
}

func (c *Client) DeleteServiceType(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete service type: id is required")
	}
	return c.doJSON(ctx, http.MethodDelete, serviceTypePath(id), nil, nil)
}

func serviceTypePath(id string) string {
	return path.Join("/tipe-layanan", url.PathEscape(id))
}

type googleUser struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// ExchangeGoogle verifies a Google credential with the backend and returns
// the signed-in user.
func (c *Client) ExchangeGoogle(ctx context.Context, credential string) (*model.User, error) {
	if credential == "" {
		return nil, errors.New("exchange google credential: empty credential")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/google", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	var out struct {
		User googleUser `json:"user"`
	}
	if err := c.send(c.public, req, &out); err != nil {
		return nil, fmt.Errorf("exchange google credential: %w", err)
	}
	if out.User.UID == "" && out.User.Email == "" {
		return nil, errors.New("exchange google credential: backend returned no user")
	}
	id := out.User.UID
	if id == "" {
		id = out.User.Email
	}
	return &model.User{
		ID:          id,
		DisplayName: out.User.Name,
		Email:       out.User.Email,
		Provider:    "google.com",
		PhotoURL:    out.User.Picture,
	}, nil
}

func (c *Client) upload(ctx context.Context, endpoint, filename string, r io.Reader, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := c.send(c.httpClient, req, out); err != nil {
		return fmt.Errorf("upload %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.send(c.httpClient, req, out); err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if res, ok := out.(*UploadResult); ok && !json.Valid(data) {
		res.Message = strings.TrimSpace(string(data))
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode)
	}
	return apiErr
}
