package auth

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncodeDecodeState_RoundTrip(t *testing.T) {
	in := State{RedirectURI: "https://app.example/api/oauth/callback", Provider: GitHubProvider}

	out, err := DecodeState(EncodeState(in))
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}
	if *out != in {
		t.Errorf("DecodeState() = %+v, want %+v", *out, in)
	}
}

func TestDecodeState_AcceptsAllBase64Alphabets(t *testing.T) {
	// '?'と'>'を含めて標準とURLセーフで符号化結果が異なるようにする
	payload := []byte(`{"redirectUri":"https://app.example/cb?x=>>>","provider":"google"}`)

	encodings := map[string]*base64.Encoding{
		"std":     base64.StdEncoding,
		"raw std": base64.RawStdEncoding,
		"url":     base64.URLEncoding,
		"raw url": base64.RawURLEncoding,
	}
	for name, enc := range encodings {
		t.Run(name, func(t *testing.T) {
			s, err := DecodeState(enc.EncodeToString(payload))
			if err != nil {
				t.Fatalf("DecodeState() error = %v", err)
			}
			if s.Provider != GoogleProvider || s.RedirectURI != "https://app.example/cb?x=>>>" {
				t.Errorf("DecodeState() = %+v", s)
			}
		})
	}
}

func TestDecodeState_PlusDecodedAsSpace(t *testing.T) {
	payload := []byte(`{"redirectUri":"https://app.example/cb?x=>>>","provider":"google"}`)
	encoded := base64.StdEncoding.EncodeToString(payload)
	if !strings.Contains(encoded, "+") {
		t.Fatalf("fixture must contain '+': %s", encoded)
	}

	s, err := DecodeState(strings.ReplaceAll(encoded, "+", " "))
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}
	if s.Provider != "google" {
		t.Errorf("Provider = %q", s.Provider)
	}
}

func TestDecodeState_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not base64", "%%%"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("hello"))},
		{"json array", base64.StdEncoding.EncodeToString([]byte(`["google"]`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s, err := DecodeState(tt.raw); err == nil {
				t.Errorf("DecodeState(%q) = %+v, want error", tt.raw, s)
			}
		})
	}
}
