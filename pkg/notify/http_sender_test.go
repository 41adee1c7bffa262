package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSenderSendEmail(t *testing.T) {
	var captured sendGridPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewHTTPSender(HTTPConfig{SendGridAPIKey: "sg-key", EmailFrom: "noreply@example.com", SendGridURL: srv.URL})
	err := sender.SendEmail(context.Background(), "ana@example.com", "New task: Draft", "body", "")
	require.NoError(t, err)

	assert.Equal(t, "Bearer sg-key", auth)
	assert.Equal(t, "noreply@example.com", captured.From.Email)
	assert.Equal(t, defaultSenderName, captured.From.Name)
	require.Len(t, captured.Personalizations, 1)
	assert.Equal(t, "ana@example.com", captured.Personalizations[0].To[0].Email)
	assert.Equal(t, "New task: Draft", captured.Subject)
	assert.Equal(t, []sendGridContent{{Type: "text/plain", Value: "body"}}, captured.Content)
}

func TestHTTPSenderSendSMS(t *testing.T) {
	var path, user, pass string
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, pass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewHTTPSender(HTTPConfig{
		TwilioAccountSID: "AC1",
		TwilioAuthToken:  "tok",
		TwilioFromNumber: "+15550000",
		TwilioBaseURL:    srv.URL,
	})
	require.NoError(t, sender.SendSMS(context.Background(), "+15551111", "hello"))

	assert.Equal(t, "/Accounts/AC1/Messages.json", path)
	assert.Equal(t, "AC1", user)
	assert.Equal(t, "tok", pass)
	assert.Equal(t, []string{"+15550000"}, form["From"])
	assert.Equal(t, []string{"+15551111"}, form["To"])
	assert.Equal(t, []string{"hello"}, form["Body"])
}

func TestHTTPSenderNotConfigured(t *testing.T) {
	sender := NewHTTPSender(HTTPConfig{})
	assert.ErrorIs(t, sender.SendEmail(context.Background(), "a@example.com", "s", "b", ""), ErrNotConfigured)
	assert.ErrorIs(t, sender.SendSMS(context.Background(), "+1", "b"), ErrNotConfigured)
}

func TestHTTPSenderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewHTTPSender(HTTPConfig{SendGridAPIKey: "k", EmailFrom: "f@example.com", SendGridURL: srv.URL})
	err := sender.SendEmail(context.Background(), "a@example.com", "s", "b", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad key")
}
