package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWhatsAppSender(t *testing.T) {
	tests := []struct {
		name          string
		accessToken   string
		phoneNumberID string
		wantErr       bool
	}{
		{name: "Valid credentials", accessToken: "test_token", phoneNumberID: "123456789"},
		{name: "Missing access token", phoneNumberID: "123456789", wantErr: true},
		{name: "Missing phone number ID", accessToken: "test_token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewWhatsAppSender(tt.accessToken, tt.phoneNumberID, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, sender)
		})
	}
}

func TestWhatsAppSenderSendText(t *testing.T) {
	var got textMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/123456789/messages", r.URL.Path)
		assert.Equal(t, "Bearer test_token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.test123"}]}`))
	}))
	defer ts.Close()

	sender, err := NewWhatsAppSender("test_token", "123456789", ts.Client())
	require.NoError(t, err)
	sender.WithBaseURL(ts.URL + "/")

	id, err := sender.SendText(context.Background(), "+573001112233", "Tu cita ha sido agendada")
	require.NoError(t, err)
	assert.Equal(t, "wamid.test123", id)
	assert.Equal(t, "573001112233", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "Tu cita ha sido agendada", got.Text.Body)
}

func TestWhatsAppSenderAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer ts.Close()

	sender, err := NewWhatsAppSender("test_token", "123456789", ts.Client())
	require.NoError(t, err)
	sender.WithBaseURL(ts.URL)

	_, err = sender.SendText(context.Background(), "573001112233", "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestWhatsAppSenderRequiresRecipient(t *testing.T) {
	sender, err := NewWhatsAppSender("test_token", "123456789", nil)
	require.NoError(t, err)
	_, err = sender.SendText(context.Background(), " ", "hola")
	assert.Error(t, err)
}

func TestNopSender(t *testing.T) {
	id, err := NopSender{Logger: zerolog.Nop()}.SendText(context.Background(), "573001112233", "hola")
	assert.NoError(t, err)
	assert.Empty(t, id)
}
