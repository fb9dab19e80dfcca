package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOutboundClient_Timeout(t *testing.T) {
	client := NewOutboundClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewOutboundClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout %v, got %v", 5*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// httptestのTLSサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewOutboundClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundClient(5 * time.Second)

	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateEndpoint_Allowed(t *testing.T) {
	for _, u := range []string{
		"https://oauth2.googleapis.com/token",
		"https://www.googleapis.com/oauth2/v3/userinfo",
		"https://login.microsoftonline.com/common/oauth2/v2.0/token",
		"https://graph.microsoft.com/oidc/userinfo",
	} {
		t.Run(u, func(t *testing.T) {
			if err := ValidateEndpoint(u); err != nil {
				t.Errorf("ValidateEndpoint(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateEndpoint_Rejected(t *testing.T) {
	for _, u := range []string{
		"",
		"not-a-url",
		"http://oauth2.googleapis.com/token",
		"ftp://example.com/token",
		"https://10.0.0.1/token",
		"https://192.168.1.100/token",
		"https://127.0.0.1/token",
		"https://localhost/token",
		"https://169.254.169.254/latest/meta-data/",
		"https://[::1]/token",
		"https://0.0.0.0/token",
	} {
		t.Run(u, func(t *testing.T) {
			if err := ValidateEndpoint(u); err == nil {
				t.Errorf("ValidateEndpoint(%q) should have returned error", u)
			}
		})
	}
}
