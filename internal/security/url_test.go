package security

import (
	"net"
	"strings"
	"testing"
)

func TestURLGuard_Validate(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "public http", url: "http://example.com/page"},
		{name: "public https", url: "https://example.com"},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: "unsupported scheme"},
		{name: "ftp scheme", url: "ftp://example.com", wantErr: "unsupported scheme"},
		{name: "empty host", url: "http://", wantErr: "empty hostname"},
		{name: "localhost", url: "http://localhost:8080/admin", wantErr: "blocked host"},
		{name: "localhost uppercase", url: "http://LOCALHOST/", wantErr: "blocked host"},
		{name: "gcp metadata hostname", url: "http://metadata.google.internal/computeMetadata", wantErr: "blocked host"},
		{name: "loopback ip", url: "http://127.0.0.1:9200", wantErr: "loopback"},
		{name: "ipv6 loopback", url: "http://[::1]/", wantErr: "loopback"},
		{name: "mapped loopback", url: "http://[::ffff:127.0.0.1]/", wantErr: "loopback"},
		{name: "private 10", url: "http://10.0.0.5/internal", wantErr: "private"},
		{name: "private 172", url: "http://172.16.1.1/", wantErr: "private"},
		{name: "private 192", url: "http://192.168.1.1/router", wantErr: "private"},
		{name: "cloud metadata ip", url: "http://169.254.169.254/latest/meta-data", wantErr: "link-local"},
		{name: "unspecified", url: "http://0.0.0.0/", wantErr: "unspecified"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Validate(tt.url)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate(%q) error: %v", tt.url, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate(%q) succeeded, want error containing %q", tt.url, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate(%q) error = %q, want substring %q", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestURLGuard_CheckIP_PublicAddresses(t *testing.T) {
	guard := NewURLGuard()
	for _, addr := range []string{"8.8.8.8", "93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"} {
		if err := guard.checkIP(net.ParseIP(addr)); err != nil {
			t.Errorf("checkIP(%s) error: %v", addr, err)
		}
	}
}

func TestURLGuard_DialBlocksLoopback(t *testing.T) {
	guard := NewURLGuard()
	if _, err := guard.dialContext(t.Context(), "tcp", "127.0.0.1:80"); err == nil {
		t.Error("dialContext to loopback succeeded, want error")
	}
}

func TestURLGuard_ClientRedirectPolicy(t *testing.T) {
	client := NewURLGuard().Client(0)
	if client.CheckRedirect == nil {
		t.Fatal("client has no redirect policy")
	}
}
