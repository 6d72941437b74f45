package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-api/internal/config"
)

func fakePayPal(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "cid" || pass != "sec" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":32400}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body["intent"])
		pu := body["purchase_units"].([]any)[0].(map[string]any)
		assert.Equal(t, "local-1", pu["reference_id"])
		assert.Equal(t, "18.00", pu["amount"].(map[string]any)["value"])
		assert.Equal(t, "USD", pu["amount"].(map[string]any)["currency_code"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"CREATED","links":[
			{"rel":"self","href":"https://api/self"},
			{"rel":"approve","href":"https://paypal/approve?token=PP-1"}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/PP-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"APPROVED"}`))
	})
	mux.HandleFunc("/v2/checkout/orders/PP-1/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"COMPLETED","purchase_units":[{"payments":{"captures":[{"id":"CAP-9","status":"COMPLETED"}]}}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/PP-BAD/capture", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","message":"The requested action could not be performed","details":[{"issue":"ORDER_NOT_APPROVED","description":"Payer has not yet approved the Order for payment."}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(config.PayPalConfig{ClientID: "cid", Secret: "sec", BaseURL: url, Currency: "USD", Timeout: 5 * time.Second})
}

func TestCreateGetCapture(t *testing.T) {
	var tokenCalls int32
	srv := fakePayPal(t, &tokenCalls)
	c := newTestClient(srv.URL)
	ctx := context.Background()

	created, err := c.CreateOrder(ctx, CreateOrderInput{
		ReferenceID: "local-1",
		Amount:      decimal.RequireFromString("18"),
		ReturnURL:   "http://shop/checkout/success?order_id=local-1",
		CancelURL:   "http://shop/checkout/cancel?order_id=local-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "PP-1", created.ID)
	assert.Equal(t, "https://paypal/approve?token=PP-1", created.ApprovalURL)

	got, err := c.GetOrder(ctx, "PP-1")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", got.Status)

	captured, err := c.Capture(ctx, "PP-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, captured.Status)
	assert.Equal(t, "CAP-9", captured.CaptureID)

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls), "token is cached")
}

func TestCaptureAPIError(t *testing.T) {
	var tokenCalls int32
	srv := fakePayPal(t, &tokenCalls)
	_, err := newTestClient(srv.URL).Capture(context.Background(), "PP-BAD")
	require.Error(t, err)
	assert.True(t, IsAPIError(err))
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnprocessableEntity, ae.StatusCode)
	assert.Equal(t, "Payer has not yet approved the Order for payment.", ae.Message)
}

func TestBadCredentials(t *testing.T) {
	var tokenCalls int32
	srv := fakePayPal(t, &tokenCalls)
	c := NewClient(config.PayPalConfig{ClientID: "x", Secret: "y", BaseURL: srv.URL, Currency: "USD", Timeout: time.Second})
	_, err := c.GetOrder(context.Background(), "PP-1")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.StatusCode)
	assert.Equal(t, "Client Authentication failed", ae.Message)
}
