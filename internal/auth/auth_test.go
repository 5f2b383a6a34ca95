package auth

import (
	"encoding/base64"
	"testing"
)

func TestBasicAuth(t *testing.T) {
	tests := []struct {
		user, pass string
		want       string
	}{
		{"Aladdin", "open sesame", "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ=="},
		{"", "", "Basic Og=="},
		{"user", "p:ss", "Basic " + base64.StdEncoding.EncodeToString([]byte("user:p:ss"))},
	}

	for _, tc := range tests {
		if got := BasicAuth(tc.user, tc.pass); got != tc.want {
			t.Errorf("BasicAuth(%q, %q) = %q, want %q", tc.user, tc.pass, got, tc.want)
		}
	}
}

func TestBearerAuth(t *testing.T) {
	if got := BearerAuth("abc.def"); got != "Bearer abc.def" {
		t.Errorf("BearerAuth = %q", got)
	}
}
