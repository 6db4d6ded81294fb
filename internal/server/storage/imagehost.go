package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

// ImageHostOptions configures a hosted image service that accepts unsigned
// multipart uploads and deletes through a server-side relay.
type ImageHostOptions struct {
	UploadURL    string
	UploadPreset string
	// DeleteURL is a relay endpoint accepting {"publicId": "..."}; it holds
	// the signing secret so this process never does.
	DeleteURL string
	Client    *http.Client
}

type ImageHostStore struct {
	opts   ImageHostOptions
	client *http.Client
}

func NewImageHostStore(opts ImageHostOptions) *ImageHostStore {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImageHostStore{opts: opts, client: client}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Put uploads data with public id = key without its extension.
func (s *ImageHostStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	_ = w.WriteField("upload_preset", s.opts.UploadPreset)
	_ = w.WriteField("public_id", strings.TrimSuffix(key, path.Ext(key)))

	part, err := w.CreateFormFile("file", path.Base(key))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.UploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("upload %s: status %d: decode response: %w", key, resp.StatusCode, err)
	}
	if resp.StatusCode/100 != 2 || out.SecureURL == "" {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("upload %s: status %d: %s", key, resp.StatusCode, msg)
	}
	return out.SecureURL, nil
}

func (s *ImageHostStore) Delete(ctx context.Context, rawURL string) error {
	publicID, err := PublicIDFromURL(rawURL)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"publicId": publicID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.DeleteURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrObjectNotFound, publicID)
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("delete %s: status %d", publicID, resp.StatusCode)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL derives the hosted public id from a delivery URL such as
// https://res.example.com/demo/image/upload/v1712/projects/2024/x.jpg
// (public id "projects/2024/x").
func PublicIDFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad url %q", ErrObjectNotFound, rawURL)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, seg := range segments {
		if seg == "upload" {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(segments)-1 {
		return "", fmt.Errorf("%w: %q is not a hosted image url", ErrObjectNotFound, rawURL)
	}

	rest := segments[idx+1:]
	if len(rest) > 1 && versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}
	id := strings.Join(rest, "/")
	return strings.TrimSuffix(id, path.Ext(id)), nil
}
