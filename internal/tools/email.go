package tools

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

	"github.com/mohammad-safakhou/chefbot/internal/chef"
	"github.com/mohammad-safakhou/chefbot/provider"
)

const resendEndpoint = "https://api.resend.com/emails"

// SendEmail delivers a recipe or shopping list to an address the user typed
// in the current message. The orchestrator pre-validates the recipient; this
// tool only performs the delivery.
type SendEmail struct {
	APIKey  string
	Sender  string
	ReplyTo string
	Client  *http.Client
	Logger  *log.Logger
}

func (t *SendEmail) Def() provider.ToolDef {
	return provider.ToolDef{
		Name:        chef.EmailToolName,
		Description: "Sends an email with the given subject and body. Only usable when the user provides an email address in their current message.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"to": map[string]interface{}{
					"type":        "string",
					"description": "Recipient email address, exactly as the user wrote it",
				},
				"subject": map[string]interface{}{
					"type":        "string",
					"description": "Email subject line",
				},
				"body": map[string]interface{}{
					"type":        "string",
					"description": "Plain-text email body",
				},
			},
			"required": []string{"to", "subject", "body"},
		},
	}
}

func (t *SendEmail) Call(ctx context.Context, args map[string]interface{}) (string, error) {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)
	to = strings.TrimSpace(to)
	if to == "" {
		return "Error: recipient address is missing.", nil
	}
	if strings.TrimSpace(subject) == "" {
		subject = "A message from your chef"
	}

	payload := map[string]interface{}{
		"from":    t.Sender,
		"to":      []string{to},
		"subject": subject,
		"text":    body,
	}
	if t.ReplyTo != "" {
		payload["reply_to"] = t.ReplyTo
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal payload: %v", chef.ErrMailFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", resendEndpoint, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", chef.ErrMailFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client().Do(req)
	if err != nil {
		t.logf("email send to %s failed: %v", to, err)
		return fmt.Sprintf("Error: could not send email: %v", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		t.logf("email send to %s rejected: status %d: %s", to, resp.StatusCode, string(msg))
		return fmt.Sprintf("Error: email provider rejected the message (status %d).", resp.StatusCode), nil
	}
	t.logf("email sent to %s", to)
	return fmt.Sprintf("Email sent to %s.", to), nil
}

func (t *SendEmail) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (t *SendEmail) logf(format string, args ...interface{}) {
	if t.Logger != nil {
		t.Logger.Printf(format, args...)
	}
}
