// internal/provider/client.go
package provider

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "net/http"
    "strings"
    "time"
)

// APIError is a non-2xx response from the provider. 429 and 5xx are
// transient; other 4xx are permanent and must not be retried.
type APIError struct {
    StatusCode int
    Body       string
}

func (e *APIError) Error() string {
    return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Transient() bool {
    return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the provider's contact API. Endpoints address contacts
// by phone: POST {base}/contact/phone:{e164}/message, .../comment and
// .../conversation/assignee.
type Client struct {
    BaseURL    string
    Token      string
    ChannelID  string
    HTTPClient *http.Client
}

func NewClient(baseURL, token, channelID string, timeout time.Duration) *Client {
    return &Client{
        BaseURL:    strings.TrimRight(baseURL, "/"),
        Token:      token,
        ChannelID:  channelID,
        HTTPClient: &http.Client{Timeout: timeout},
    }
}

type messageResponse struct {
    MessageID json.Number `json:"messageId"`
}

// SendText sends a customer-facing text message and returns the
// provider-assigned message id.
func (c *Client) SendText(ctx context.Context, phone, text string) (string, error) {
    body := map[string]any{
        "channelId": c.ChannelID,
        "message": map[string]any{
            "type": "text",
            "text": text,
        },
    }
    return c.postMessage(ctx, phone, body)
}

// SendAttachment sends a pre-scanned file by URL. The attachment type is
// sniffed from the extension the way the provider expects.
func (c *Client) SendAttachment(ctx context.Context, phone, fileURL string) (string, error) {
    attachmentType := "file"
    lower := strings.ToLower(fileURL)
    for _, ext := range []string{".jpg", ".jpeg", ".png"} {
        if strings.HasSuffix(lower, ext) {
            attachmentType = "image"
            break
        }
    }
    body := map[string]any{
        "channelId": c.ChannelID,
        "message": map[string]any{
            "type": "attachment",
            "attachment": map[string]any{
                "type": attachmentType,
                "url":  fileURL,
            },
        },
    }
    return c.postMessage(ctx, phone, body)
}

func (c *Client) postMessage(ctx context.Context, phone string, body map[string]any) (string, error) {
    raw, err := c.post(ctx, fmt.Sprintf("%s/contact/phone:%s/message", c.BaseURL, phone), body)
    if err != nil {
        return "", err
    }
    var resp messageResponse
    if err := json.Unmarshal(raw, &resp); err != nil {
        // accepted but unparseable: sent without an id, and loudly, so a
        // provider contract drift does not go unnoticed
        log.Println("⚠️ provider accepted the message but the response is unparseable:", err)
        return "", nil
    }
    return resp.MessageID.String(), nil
}

// Assign sets the conversation assignee by internal user email.
func (c *Client) Assign(ctx context.Context, phone, email string) error {
    body := map[string]any{"assignee": email}
    _, err := c.post(ctx, fmt.Sprintf("%s/contact/phone:%s/conversation/assignee", c.BaseURL, phone), body)
    return err
}

func (c *Client) Unassign(ctx context.Context, phone string) error {
    body := map[string]any{"assignee": nil}
    _, err := c.post(ctx, fmt.Sprintf("%s/contact/phone:%s/conversation/assignee", c.BaseURL, phone), body)
    return err
}

// CreateComment mirrors an internal comment to the provider. Tagged
// users are appended in the provider's {{@user.N}} markup.
func (c *Client) CreateComment(ctx context.Context, phone, text string, taggedUserIDs []string) error {
    formatted := text
    for _, id := range taggedUserIDs {
        formatted += " {{@user." + id + "}}"
    }
    body := map[string]any{"text": formatted}
    _, err := c.post(ctx, fmt.Sprintf("%s/contact/phone:%s/comment", c.BaseURL, phone), body)
    return err
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
    payload, err := json.Marshal(body)
    if err != nil {
        return nil, err
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
    if err != nil {
        return nil, err
    }
    req.Header.Set("Accept", "application/json")
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+c.Token)

    resp, err := c.HTTPClient.Do(req)
    if err != nil {
        return nil, err
    }
    defer resp.Body.Close()

    raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
    if err != nil {
        return nil, err
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
    }
    return raw, nil
}
