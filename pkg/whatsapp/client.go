/**
 * @description
 * This package provides a client for sending template messages through the
 * WhatsApp Cloud API. The verification engine uses it to deliver one-time
 * codes; the template carries the code as its single substitution variable.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the WhatsApp Cloud API, scoped to one business phone number.
type Client struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	TemplateName  string
	TemplateLang  string
	HTTPClient    *http.Client
}

// NewClient creates a new WhatsApp Cloud API client.
func NewClient(baseURL, phoneNumberID, accessToken, templateName, templateLang string) *Client {
	if templateLang == "" {
		templateLang = "fr"
	}
	return &Client{
		BaseURL:       baseURL,
		PhoneNumberID: phoneNumberID,
		AccessToken:   accessToken,
		TemplateName:  templateName,
		TemplateLang:  templateLang,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type templateMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Template         template `json:"template"`
}

type template struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []component `json:"components"`
}

type language struct {
	Code string `json:"code"`
}

type component struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      string      `json:"index,omitempty"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// ErrorResponse represents an error returned by the WhatsApp Cloud API.
type ErrorResponse struct {
	Err struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("whatsapp api error: %s (code %d)", e.Err.Message, e.Err.Code)
}

// SendCodeTemplate dispatches the verification template with the code as the
// only body parameter. It returns the provider's message id on success.
func (c *Client) SendCodeTemplate(ctx context.Context, toE164, code string) (string, error) {
	payload := templateMessage{
		MessagingProduct: "whatsapp",
		To:               toE164,
		Type:             "template",
		Template: template{
			Name:     c.TemplateName,
			Language: language{Code: c.TemplateLang},
			Components: []component{
				{
					Type:       "body",
					Parameters: []parameter{{Type: "text", Text: code}},
				},
				{
					// Authentication templates carry the code on the copy button too.
					Type:       "button",
					SubType:    "url",
					Index:      "0",
					Parameters: []parameter{{Type: "text", Text: code}},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal template message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, c.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute message request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read message response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=whatsapp_client op=send_template status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
			return "", fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=whatsapp_client op=send_template status=%d code=%d", resp.StatusCode, errResp.Err.Code)
		return "", &errResp
	}

	var success sendResponse
	if err := json.Unmarshal(bodyBytes, &success); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}
	if len(success.Messages) == 0 {
		return "", fmt.Errorf("whatsapp response contained no message id")
	}
	return success.Messages[0].ID, nil
}
