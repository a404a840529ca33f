package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func TestSecretString(t *testing.T) {
	tests := []struct {
		name     string
		input    SecretString
		wantJSON string
		wantYAML string
	}{
		{"empty", "", "null", "null\n"},
		{"short", "x", `"` + SecretMask + `"`, SecretMask + "\n"},
		{"long", "this-is-a-very-long-token-that-should-still-be-hidden", `"` + SecretMask + `"`, SecretMask + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.input)
			if err != nil {
				t.Fatalf("json.Marshal() error = %v", err)
			}
			if string(got) != tt.wantJSON {
				t.Errorf("json.Marshal() = %s, want %s", got, tt.wantJSON)
			}

			got, err = yaml.Marshal(tt.input)
			if err != nil {
				t.Fatalf("yaml.Marshal() error = %v", err)
			}
			if string(got) != tt.wantYAML {
				t.Errorf("yaml.Marshal() = %q, want %q", got, tt.wantYAML)
			}

			if tt.input.Reveal() != string(tt.input) {
				t.Error("Reveal() must return actual value")
			}
			if s := fmt.Sprint(tt.input); len(tt.input) > 0 && strings.Contains(s, string(tt.input)) {
				t.Errorf("String() leaks value: %s", s)
			}
		})
	}
}

func TestSecretStringInStruct(t *testing.T) {
	conf := ServerConfig{Listen: "localhost:1", Token: "abc"}
	data, err := yaml.Marshal(conf)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "abc") || !strings.Contains(string(data), SecretMask) {
		t.Errorf("unexpected output:\n%s", data)
	}

	var back ServerConfig
	if err := yaml.Unmarshal([]byte("token: plain\n"), &back); err != nil {
		t.Fatal(err)
	}
	if back.Token.Reveal() != "plain" {
		t.Errorf("Token = %q, want plain", back.Token.Reveal())
	}
}
