package security

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateHTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		// Valid URLs
		{name: "valid https url", url: "https://raw.githubusercontent.com/rjaros/kilua/main", wantErr: ""},
		{name: "valid http url", url: "http://docs.example.com/kilua", wantErr: ""},
		// Invalid schemes
		{name: "file scheme", url: "file:///etc/passwd", wantErr: "URL scheme must be http or https"},
		{name: "ftp scheme", url: "ftp://files.example.com/file.md", wantErr: "URL scheme must be http or https"},
		{name: "no host", url: "https:///assets/md", wantErr: "URL must have a host"},
		// Localhost
		{name: "localhost", url: "http://localhost/assets", wantErr: "requests to localhost are not allowed"},
		{name: "localhost with port", url: "http://LOCALHOST:8080/assets", wantErr: "requests to localhost are not allowed"},
		// Loopback IPs
		{name: "127.0.0.1", url: "http://127.0.0.1/assets", wantErr: "requests to loopback addresses are not allowed"},
		{name: "ipv6 loopback", url: "http://[::1]/assets", wantErr: "requests to loopback addresses are not allowed"},
		// Private networks
		{name: "10.x.x.x", url: "http://10.0.0.1/assets", wantErr: "requests to private network addresses are not allowed"},
		{name: "192.168.x.x", url: "http://192.168.1.1/assets", wantErr: "requests to private network addresses are not allowed"},
		// Link-local
		{name: "metadata endpoint", url: "http://169.254.169.254/latest/meta-data", wantErr: "requests to link-local addresses are not allowed"},
		// Unspecified
		{name: "0.0.0.0", url: "http://0.0.0.0/assets", wantErr: "requests to unspecified addresses are not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHTTPURL(tt.url, false)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateHTTPURL() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("ValidateHTTPURL() expected error containing %q", tt.wantErr)
				} else if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ValidateHTTPURL() error = %q, want to contain %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateHTTPURLAllowPrivate(t *testing.T) {
	for _, u := range []string{"http://127.0.0.1:9000/", "http://localhost/", "http://10.1.2.3/"} {
		if err := ValidateHTTPURL(u, true); err != nil {
			t.Errorf("ValidateHTTPURL(%q, true) = %v, want nil", u, err)
		}
	}
	if err := ValidateHTTPURL("gopher://localhost/", true); err == nil {
		t.Error("scheme check must apply even when private hosts are allowed")
	}
}

func TestValidateContentPath(t *testing.T) {
	tests := []struct {
		path  string
		valid bool
	}{
		{"assets/md/introduction.md", true},
		{"assets/md/getting-started/setting-up.md", true},
		{"", false},
		{"/etc/passwd.md", false},
		{"../secret.md", false},
		{"assets/md/../../secret.md", false},
		{"assets/md//x.md", false},
		{`assets\md\x.md`, false},
		{"assets/md/introduction.html", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateContentPath(tt.path)
			if tt.valid && err != nil {
				t.Errorf("ValidateContentPath(%q) unexpected error: %v", tt.path, err)
			}
			if !tt.valid {
				if err == nil {
					t.Errorf("ValidateContentPath(%q) expected error", tt.path)
				} else if !errors.Is(err, ErrInvalidContentPath) {
					t.Errorf("error %v should wrap ErrInvalidContentPath", err)
				}
			}
		})
	}
}
