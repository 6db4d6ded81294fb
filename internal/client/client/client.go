package client

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
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/folio/internal/client/models"
	"github.com/dmitrijs2005/folio/internal/common"
)

type Client struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string

	// OnTokens is called after every successful sign-in or refresh.
	OnTokens func(models.TokenPair)
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetTokens(t models.TokenPair) {
	c.mu.Lock()
	c.accessToken, c.refreshToken = t.AccessToken, t.RefreshToken
	c.mu.Unlock()
}

func (c *Client) Tokens() models.TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.TokenPair{AccessToken: c.accessToken, RefreshToken: c.refreshToken}
}

func (c *Client) storeSession(s *models.Session) {
	c.SetTokens(s.TokenPair)
	if c.OnTokens != nil {
		c.OnTokens(s.TokenPair)
	}
}

type request struct {
	method      string
	path        string
	body        any
	raw         io.Reader
	contentType string
	auth        bool
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.auth {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.Tokens().AccessToken)
	}
	return req, nil
}

func (c *Client) send(ctx context.Context, r request, out any) error {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = "http_" + fmt.Sprint(resp.StatusCode)
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// do runs an authenticated call, refreshing the token pair once when the
// access token has expired. Calls with a raw body cannot be replayed, so
// rawFn rebuilds it for the retry.
func (c *Client) do(ctx context.Context, r request, out any, rawFn func() (io.Reader, string, error)) error {
	r.auth = true
	if rawFn != nil {
		raw, ct, err := rawFn()
		if err != nil {
			return err
		}
		r.raw, r.contentType = raw, ct
	}

	err := c.send(ctx, r, out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "token_expired" {
		return err
	}

	refresh := c.Tokens().RefreshToken
	if refresh == "" {
		return err
	}
	if _, rerr := c.Refresh(ctx, refresh); rerr != nil {
		return rerr
	}

	if rawFn != nil {
		raw, ct, err := rawFn()
		if err != nil {
			return err
		}
		r.raw, r.contentType = raw, ct
	}
	return c.send(ctx, r, out)
}

func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	var out struct {
		Identity models.Identity `json:"identity"`
	}
	body := map[string]string{"email": email, "password": password, "displayName": displayName}
	if err := c.send(ctx, request{method: http.MethodPost, path: "/api/auth/signup", body: body}, &out); err != nil {
		return nil, err
	}
	return &out.Identity, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var s models.Session
	body := map[string]string{"email": email, "password": password}
	if err := c.send(ctx, request{method: http.MethodPost, path: "/api/auth/signin", body: body}, &s); err != nil {
		return nil, err
	}
	c.storeSession(&s)
	return &s, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	var s models.Session
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.send(ctx, request{method: http.MethodPost, path: "/api/auth/refresh", body: body}, &s); err != nil {
		return nil, err
	}
	c.storeSession(&s)
	return &s, nil
}

// SignOut revokes the refresh token and forgets the local pair.
func (c *Client) SignOut(ctx context.Context) error {
	refresh := c.Tokens().RefreshToken
	if refresh != "" {
		body := map[string]string{"refreshToken": refresh}
		if err := c.send(ctx, request{method: http.MethodPost, path: "/api/auth/signout", body: body}, nil); err != nil {
			return err
		}
	}
	c.SetTokens(models.TokenPair{})
	return nil
}

func (c *Client) Profile(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/profiles/" + url.PathEscape(uid)}, &p, nil); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) List(ctx context.Context, collection string) ([]models.Record, error) {
	var out struct {
		Items []models.Record `json:"items"`
	}
	if err := c.send(ctx, request{method: http.MethodGet, path: "/api/content/" + url.PathEscape(collection)}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) Create(ctx context.Context, collection string, in models.RecordInput) (*models.Record, error) {
	var rec models.Record
	r := request{method: http.MethodPost, path: "/api/admin/content/" + url.PathEscape(collection), body: in}
	if err := c.do(ctx, r, &rec, nil); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, in models.RecordInput) (*models.Record, error) {
	var rec models.Record
	r := request{method: http.MethodPatch, path: "/api/admin/content/" + url.PathEscape(collection) + "/" + url.PathEscape(id), body: in}
	if err := c.do(ctx, r, &rec, nil); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	r := request{method: http.MethodDelete, path: "/api/admin/content/" + url.PathEscape(collection) + "/" + url.PathEscape(id)}
	return c.do(ctx, r, nil, nil)
}

// UploadImage sends data as a multipart "image" part and returns the URL of
// the compressed object.
func (c *Client) UploadImage(ctx context.Context, collection, filename string, data []byte) (string, error) {
	var out struct {
		ImageURL string `json:"imageUrl"`
	}
	build := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, "", err
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &buf, mw.FormDataContentType(), nil
	}
	r := request{method: http.MethodPost, path: "/api/admin/images/" + url.PathEscape(collection)}
	if err := c.do(ctx, r, &out, build); err != nil {
		return "", err
	}
	return out.ImageURL, nil
}

func (c *Client) Analytics(ctx context.Context) (*models.Report, error) {
	var rep models.Report
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/admin/analytics"}, &rep, nil); err != nil {
		return nil, err
	}
	return &rep, nil
}
