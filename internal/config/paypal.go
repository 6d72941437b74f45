package config

import "time"

// PayPalConfig carries the REST credentials and endpoint for the PayPal
// Orders v2 API.  ClientID/Secret are optional at startup: when either is
// empty the PayPal routes answer 503 instead of calling out.
type PayPalConfig struct {
	ClientID string
	Secret   string
	BaseURL  string        // https://api-m.sandbox.paypal.com or https://api-m.paypal.com
	Currency string        // ISO currency code sent with every purchase unit
	Timeout  time.Duration // per-request timeout for outbound calls
}

// LoadPayPalConfig reads PAYPAL_* variables.
func LoadPayPalConfig() PayPalConfig {
	return PayPalConfig{
		ClientID: envStr("PAYPAL_CLIENT_ID", ""),
		Secret:   envStr("PAYPAL_SECRET", ""),
		BaseURL:  envStr("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		Currency: envStr("PAYPAL_CURRENCY", "USD"),
		Timeout:  envDur("PAYPAL_TIMEOUT", 15*time.Second),
	}
}

// Configured reports whether credentials were supplied.
func (p PayPalConfig) Configured() bool { return p.ClientID != "" && p.Secret != "" }
