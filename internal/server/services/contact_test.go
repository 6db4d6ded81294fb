package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactMessage_Validate(t *testing.T) {
	tests := []struct {
		name   string
		msg    ContactMessage
		fields []string
	}{
		{name: "valid", msg: ContactMessage{Name: "Al", Email: "al@example.com", Description: "Need a website"}},
		{name: "all empty", fields: []string{"name", "email", "description"}},
		{name: "short name", msg: ContactMessage{Name: "A", Email: "a@b.co", Description: "0123456789"}, fields: []string{"name"}},
		{name: "bad email", msg: ContactMessage{Name: "Al", Email: "al@example", Description: "0123456789"}, fields: []string{"email"}},
		{name: "short description", msg: ContactMessage{Name: "Al", Email: "a@b.co", Description: "too short"}, fields: []string{"description"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				assert.Equal(t, "Not specified", tt.msg.Service)
				return
			}
			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			assert.Len(t, fe, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, fe, f)
			}
		})
	}
}

func TestContactSend_RelaysForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "key-1", r.PostForm.Get("access_key"))
		assert.Equal(t, "Al", r.PostForm.Get("name"))
		assert.Equal(t, "al@example.com", r.PostForm.Get("email"))
		assert.Equal(t, "SEO", r.PostForm.Get("service"))
		assert.Equal(t, "Need a website", r.PostForm.Get("message"))
		_, _ = w.Write([]byte(`{"success":true,"message":"Email sent"}`))
	}))
	defer srv.Close()

	s := NewContactService(srv.URL, "key-1", srv.Client(), logging.Discard())
	msg, err := s.Send(context.Background(), ContactMessage{Name: "Al", Email: "al@example.com", Service: "SEO", Description: "Need a website"})
	require.NoError(t, err)
	assert.Equal(t, ContactSuccessMessage, msg)
}

func TestContactSend_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Invalid access key"}`))
	}))
	defer srv.Close()

	s := NewContactService(srv.URL, "bad", srv.Client(), logging.Discard())
	_, err := s.Send(context.Background(), ContactMessage{Name: "Al", Email: "al@example.com", Description: "Need a website"})
	assert.ErrorIs(t, err, ErrRelayRejected)
	assert.Contains(t, err.Error(), "Invalid access key")
}

func TestContactSend_InvalidNeverCallsRelay(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	s := NewContactService(srv.URL, "k", srv.Client(), logging.Discard())
	_, err := s.Send(context.Background(), ContactMessage{Name: "Al"})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.False(t, called)
}
