package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const defaultGraphURL = "https://graph.facebook.com/v18.0"

var tracer = otel.Tracer("clinic.internal.notify")

// Sender delivers a plain text message to a recipient phone number.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// NopSender logs instead of sending; used when WhatsApp is not configured.
type NopSender struct {
	Logger zerolog.Logger
}

func (n NopSender) SendText(_ context.Context, to, body string) (string, error) {
	n.Logger.Debug().Str("to", to).Int("length", len(body)).Msg("whatsapp disabled, message dropped")
	return "", nil
}

// WhatsAppSender sends text messages through the WhatsApp Cloud API.
type WhatsAppSender struct {
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
	baseURL       string
}

func NewWhatsAppSender(accessToken, phoneNumberID string, httpClient *http.Client) (*WhatsAppSender, error) {
	if accessToken == "" || phoneNumberID == "" {
		return nil, errors.New("notify: whatsapp access token and phone number id are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &WhatsAppSender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    httpClient,
		baseURL:       defaultGraphURL,
	}, nil
}

// WithBaseURL points the sender at another Graph API host.
func (w *WhatsAppSender) WithBaseURL(baseURL string) *WhatsAppSender {
	w.baseURL = strings.TrimRight(baseURL, "/")
	return w
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// SendText posts body to the recipient and returns the provider message id.
func (w *WhatsAppSender) SendText(ctx context.Context, to, body string) (string, error) {
	ctx, span := tracer.Start(ctx, "notify.whatsapp.send_text")
	defer span.End()
	span.SetAttributes(attribute.Int("body.length", len(body)))

	to = strings.TrimPrefix(strings.TrimSpace(to), "+")
	if to == "" {
		return "", errors.New("notify: recipient is required")
	}

	msg := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	msg.Text.Body = body

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("notify: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("notify: send message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("notify: read response: %w", err)
	}

	var out sendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("notify: whatsapp returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if out.Error != nil {
			err = fmt.Errorf("notify: whatsapp returned status %d: %s (code %d)", resp.StatusCode, out.Error.Message, out.Error.Code)
		}
		span.RecordError(err)
		return "", err
	}
	if len(out.Messages) == 0 {
		return "", errors.New("notify: whatsapp response has no message id")
	}
	return out.Messages[0].ID, nil
}
