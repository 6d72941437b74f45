package queue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageAppendsLine(t *testing.T) {
	dir := t.TempDir()

	body := []byte(`{"type":"order.placed","order_id":"abc","user_id":3,"total":18,"status":"PENDING","payment_method":"cash","at":"2024-05-01T10:00:00Z"}`)
	require.NoError(t, HandleMessage(dir, body))
	require.NoError(t, HandleMessage(dir, []byte(`{"type":"orders.swept","count":2,"total":0,"at":"2024-05-01T10:00:00Z"}`)))

	b, err := os.ReadFile(filepath.Join(dir, "orders.log"))
	require.NoError(t, err)
	assert.Equal(t,
		"[2024-05-01T10:00:00Z] order.placed | order_id=abc | user_id=3 | method=cash | status=PENDING | total=18.00\n"+
			"[2024-05-01T10:00:00Z] orders.swept | count=2\n",
		string(b))
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, HandleMessage(dir, []byte("not json")))
	assert.Error(t, HandleMessage(dir, []byte(`{"order_id":"x"}`)))
}

func TestFormatLineFixedTotal(t *testing.T) {
	line := FormatLine(OrderEvent{Type: OrderPaid, OrderID: "o", Total: decimal.RequireFromString("9.5"), At: time.Unix(0, 0)})
	assert.Contains(t, line, "total=9.50")
	assert.Contains(t, line, "[1970-01-01T00:00:00Z] order.paid")
}
