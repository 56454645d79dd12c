package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PlatformFacebook is the platform tag stored on queued posts.
const PlatformFacebook = "facebook"

// Publisher posts an announcement and returns the platform's post id.
type Publisher interface {
	Publish(ctx context.Context, message string) (string, error)
}

// FacebookClient publishes to a page feed via the Graph API.
type FacebookClient struct {
	PageID      string
	AccessToken string
	BaseURL     string
	HTTPClient  *http.Client
}

// NewFacebookClient builds a page-feed publisher.
func NewFacebookClient(pageID, accessToken, baseURL string) *FacebookClient {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v19.0"
	}
	return &FacebookClient{
		PageID:      pageID,
		AccessToken: accessToken,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// PageInfo holds the basic page fields used to verify credentials.
type PageInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
}

// VerifyPage fetches the page's basic info to confirm the id and token
// are valid.
func (f *FacebookClient) VerifyPage(ctx context.Context) (PageInfo, error) {
	if f.PageID == "" || f.AccessToken == "" {
		return PageInfo{}, fmt.Errorf("facebook: credentials are not configured")
	}
	endpoint := fmt.Sprintf("%s/%s?fields=id,name,link&access_token=%s", f.BaseURL, f.PageID, url.QueryEscape(f.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return PageInfo{}, err
	}
	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return PageInfo{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PageInfo{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return PageInfo{}, fmt.Errorf("facebook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var info PageInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return PageInfo{}, fmt.Errorf("facebook: decode response: %w", err)
	}
	return info, nil
}

// Publish posts one message to the page feed.
func (f *FacebookClient) Publish(ctx context.Context, message string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", f.AccessToken)

	endpoint := fmt.Sprintf("%s/%s/feed", f.BaseURL, f.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("facebook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("facebook: decode response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("facebook: response missing post id")
	}
	return out.ID, nil
}
