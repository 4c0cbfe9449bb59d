package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"raffle-system/internal/payments"
	"raffle-system/models"
	"raffle-system/services"
)

// fakeVerifier returns a canned order or error.
type fakeVerifier struct {
	order *payments.VerifiedOrder
	err   error
}

func (f *fakeVerifier) VerifyOrder(ctx context.Context, orderID string) (*payments.VerifiedOrder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

// fakeNotifier records deliveries instead of sending them.
type fakeNotifier struct {
	confirmations []*models.Purchase
	published     []*models.Purchase
	sendErr       error
}

func (f *fakeNotifier) SendConfirmation(p *models.Purchase) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.confirmations = append(f.confirmations, p)
	return nil
}

func (f *fakeNotifier) SendCertificate(toEmail, toName, ticketImage string) error {
	return f.sendErr
}

func (f *fakeNotifier) PublishPurchase(p *models.Purchase) {
	f.published = append(f.published, p)
}

const (
	purchaseIDPattern = `pp_\d+_[a-z0-9]{9}`
	ticketKeyPattern  = `ticket:CALABA-[A-Z2-9]{5}`
)

func setupConfirm(verifier payments.Verifier) (*ConfirmHandler, redismock.ClientMock, *fakeNotifier) {
	db, mock := redismock.NewClientMock()
	tickets := services.NewTicketService(db)
	purchases := services.NewPurchaseService(db)
	notifier := &fakeNotifier{}
	return NewConfirmHandler(verifier, tickets, purchases, notifier), mock, notifier
}

func postJSON(t *testing.T, handler echo.HandlerFunc, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e := echo.New()
	c := e.NewContext(req, rec)

	assert.NoError(t, handler(c))

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestConfirmPurchase_MissingFields(t *testing.T) {
	handler, _, _ := setupConfirm(&fakeVerifier{})

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "email": "jordan@example.com"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", resp["error"])
}

func TestConfirmPurchase_MissingAmount(t *testing.T) {
	// The unverified fallback must still insist on an amount; without one a
	// zero-revenue purchase would be recorded.
	handler, mock, notifier := setupConfirm(nil)

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER9", "name": "Jordan", "email": "jordan@example.com", "ticketCount": 1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", resp["error"])
	assert.Contains(t, resp["required"], "amount")
	assert.Empty(t, notifier.confirmations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_RejectsNonPositiveAmount(t *testing.T) {
	handler, mock, _ := setupConfirm(&fakeVerifier{})

	for _, amount := range []string{"0", "-5.00"} {
		rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
			`{"orderId": "ORDER9", "name": "Jordan", "email": "jordan@example.com", "amount": "`+amount+`", "ticketCount": 1}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount %s", amount)
		assert.Equal(t, "Missing required fields", resp["error"])
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_VerificationFailure(t *testing.T) {
	handler, _, _ := setupConfirm(&fakeVerifier{err: errors.New("order not found")})

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "name": "Jordan", "email": "jordan@example.com", "amount": "20.00", "ticketCount": 3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment verification failed", resp["error"])
}

func TestConfirmPurchase_NotCompleted(t *testing.T) {
	handler, _, _ := setupConfirm(&fakeVerifier{
		order: &payments.VerifiedOrder{OrderID: "ORDER1", Status: "CREATED", Amount: decimal.RequireFromString("20.00")},
	})

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "name": "Jordan", "email": "jordan@example.com", "amount": "20.00", "ticketCount": 3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment not completed", resp["error"])
	assert.Equal(t, "CREATED", resp["status"])
}

func TestConfirmPurchase_AmountMismatch(t *testing.T) {
	handler, _, _ := setupConfirm(&fakeVerifier{
		order: &payments.VerifiedOrder{OrderID: "ORDER1", Status: "COMPLETED", Amount: decimal.RequireFromString("20.00")},
	})

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "name": "Jordan", "email": "jordan@example.com", "amount": "25.00", "ticketCount": 3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Amount mismatch", resp["error"])
}

func TestConfirmPurchase_WithinTolerance(t *testing.T) {
	handler, mock, notifier := setupConfirm(&fakeVerifier{
		order: &payments.VerifiedOrder{OrderID: "ORDER1", Status: "COMPLETED", Amount: decimal.RequireFromString("20.00"), PayerID: "PAYER1"},
	})

	mock.Regexp().ExpectSetNX("payment_ref:paypal:ORDER1", purchaseIDPattern, 0).SetVal(true)
	mock.Regexp().ExpectSetNX(ticketKeyPattern, purchaseIDPattern, 0).SetVal(true)
	mock.Regexp().ExpectSet(`purchase:`+purchaseIDPattern, `.*`, 0).SetVal("OK")
	mock.Regexp().ExpectLPush("purchases:list", purchaseIDPattern).SetVal(1)

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "name": "Jordan", "email": "jordan@example.com", "amount": "19.99", "ticketCount": 1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["verified"])
	assert.Equal(t, true, resp["emailSent"])
	assert.Len(t, resp["ticketNumbers"], 1)
	assert.Len(t, notifier.confirmations, 1)
	assert.Len(t, notifier.published, 1)
	assert.Equal(t, "PAYER1", notifier.confirmations[0].PayPalPayerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_EmailFailureDoesNotFailPurchase(t *testing.T) {
	handler, mock, notifier := setupConfirm(&fakeVerifier{
		order: &payments.VerifiedOrder{OrderID: "ORDER1", Status: "COMPLETED", Amount: decimal.RequireFromString("20.00")},
	})
	notifier.sendErr = errors.New("smtp timeout")

	mock.Regexp().ExpectSetNX("payment_ref:paypal:ORDER1", purchaseIDPattern, 0).SetVal(true)
	mock.Regexp().ExpectSetNX(ticketKeyPattern, purchaseIDPattern, 0).SetVal(true)
	mock.Regexp().ExpectSet(`purchase:`+purchaseIDPattern, `.*`, 0).SetVal("OK")
	mock.Regexp().ExpectLPush("purchases:list", purchaseIDPattern).SetVal(1)

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "name": "Jordan", "email": "jordan@example.com", "amount": "20.00", "ticketCount": 1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, false, resp["emailSent"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_UnverifiedFallback(t *testing.T) {
	handler, mock, _ := setupConfirm(nil)

	mock.Regexp().ExpectSetNX("payment_ref:paypal:ORDER2", purchaseIDPattern, 0).SetVal(true)
	mock.Regexp().ExpectSetNX(ticketKeyPattern, purchaseIDPattern, 0).SetVal(true)
	mock.Regexp().ExpectSet(`purchase:`+purchaseIDPattern, `.*`, 0).SetVal("OK")
	mock.Regexp().ExpectLPush("purchases:list", purchaseIDPattern).SetVal(1)

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER2", "name": "Jordan", "email": "jordan@example.com", "amount": "10.00", "ticketCount": 1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, false, resp["verified"])
	assert.Equal(t, "Recorded without server-side verification", resp["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_DuplicateOrder(t *testing.T) {
	handler, mock, notifier := setupConfirm(&fakeVerifier{
		order: &payments.VerifiedOrder{OrderID: "ORDER1", Status: "COMPLETED", Amount: decimal.RequireFromString("20.00")},
	})

	mock.Regexp().ExpectSetNX("payment_ref:paypal:ORDER1", purchaseIDPattern, 0).SetVal(false)
	mock.ExpectGet("payment_ref:paypal:ORDER1").SetVal("pp_1757410096123_k3j9x2m4q")

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "name": "Jordan", "email": "jordan@example.com", "amount": "20.00", "ticketCount": 3}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["duplicate"])
	assert.Equal(t, "pp_1757410096123_k3j9x2m4q", resp["purchaseId"])
	assert.Empty(t, notifier.confirmations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPurchase_ReleasesClaimWhenAllocationFails(t *testing.T) {
	handler, mock, _ := setupConfirm(&fakeVerifier{
		order: &payments.VerifiedOrder{OrderID: "ORDER1", Status: "COMPLETED", Amount: decimal.RequireFromString("20.00")},
	})

	mock.Regexp().ExpectSetNX("payment_ref:paypal:ORDER1", purchaseIDPattern, 0).SetVal(true)
	mock.Regexp().ExpectSetNX(ticketKeyPattern, purchaseIDPattern, 0).SetErr(errors.New("connection reset"))
	mock.ExpectDel("payment_ref:paypal:ORDER1").SetVal(1)

	rec, resp := postJSON(t, handler.ConfirmPurchase, "/api/purchases/confirm",
		`{"orderId": "ORDER1", "name": "Jordan", "email": "jordan@example.com", "amount": "20.00", "ticketCount": 1}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to allocate tickets", resp["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
