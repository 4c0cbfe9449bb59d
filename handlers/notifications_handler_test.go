package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"

	"raffle-system/config"
)

func postNotification(t *testing.T, handler *NotificationsHandler, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()

	e := echo.New()
	c := e.NewContext(req, rec)

	assert.NoError(t, handler.Send(c))

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestSend_RequiresToken(t *testing.T) {
	handler := NewNotificationsHandler(&config.Config{AdminToken: "secret"}, &fakeNotifier{})

	rec, resp := postNotification(t, handler, `{"to_email": "jordan@example.com"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", resp["error"])
}

func TestSend_RequiresRecipient(t *testing.T) {
	handler := NewNotificationsHandler(&config.Config{AdminToken: "secret"}, &fakeNotifier{})

	rec, resp := postNotification(t, handler, `{"to_name": "Jordan"}`, "secret")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", resp["error"])
}

func TestSend_CertificateRequiresImage(t *testing.T) {
	handler := NewNotificationsHandler(&config.Config{AdminToken: "secret"}, &fakeNotifier{})

	rec, resp := postNotification(t, handler,
		`{"to_email": "jordan@example.com", "type": "certificate"}`, "secret")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", resp["error"])
}

func TestSend_Confirmation(t *testing.T) {
	notifier := &fakeNotifier{}
	handler := NewNotificationsHandler(&config.Config{AdminToken: "secret"}, notifier)

	rec, resp := postNotification(t, handler,
		`{"to_email": "jordan@example.com", "to_name": "Jordan", "ticket_ids": ["CALABA-ABCDE"], "amount": "10.00"}`, "secret")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["sent"])
	assert.Len(t, notifier.confirmations, 1)
	assert.Equal(t, int64(1000), notifier.confirmations[0].Amount)
	assert.Equal(t, 1, notifier.confirmations[0].TicketCount)
}

func TestSend_Certificate(t *testing.T) {
	notifier := &fakeNotifier{}
	handler := NewNotificationsHandler(&config.Config{AdminToken: "secret"}, notifier)

	image := base64.StdEncoding.EncodeToString([]byte("png bytes"))
	rec, resp := postNotification(t, handler,
		`{"to_email": "winner@example.com", "to_name": "Jordan", "type": "certificate", "ticket_image": "`+image+`"}`, "secret")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["sent"])
}
