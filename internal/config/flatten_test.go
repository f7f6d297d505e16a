package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "top level",
			in:   map[string]any{"data_dir": "/tmp/butler", "max_concurrent": 2.0},
			want: map[string]any{"data_dir": "/tmp/butler", "max_concurrent": 2.0},
		},
		{
			name: "nested",
			in: map[string]any{
				"log_level": "info",
				"http":      map[string]any{"listen": ":8088"},
				"llm":       map[string]any{"model": "gpt-4o", "temperature": 0.2, "api_key": ""},
			},
			want: map[string]any{
				"log_level":       "info",
				"http.listen":     ":8088",
				"llm.model":       "gpt-4o",
				"llm.temperature": 0.2,
				"llm.api_key":     "",
			},
		},
		{
			name: "deep",
			in:   map[string]any{"a": map[string]any{"b": map[string]any{"c": true}}},
			want: map[string]any{"a.b.c": true},
		},
		{
			name: "empty child dropped",
			in:   map[string]any{"notify": map[string]any{}, "log_level": "debug"},
			want: map[string]any{"log_level": "debug"},
		},
		{
			name: "empty",
			in:   map[string]any{},
			want: map[string]any{},
		},
		{
			name: "slices kept whole",
			in:   map[string]any{"x": map[string]any{"list": []any{"a", "b"}}, "n": nil},
			want: map[string]any{"x.list": []any{"a", "b"}, "n": nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Flatten(tt.in)); diff != "" {
				t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnflatten(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "nested",
			in:   map[string]any{"llm.model": "gpt-4o", "llm.max_tokens": 2000.0, "http.listen": ":8088", "log_level": "warn"},
			want: map[string]any{
				"llm":       map[string]any{"model": "gpt-4o", "max_tokens": 2000.0},
				"http":      map[string]any{"listen": ":8088"},
				"log_level": "warn",
			},
		},
		{
			name: "shared prefix",
			in:   map[string]any{"a.b.c": 1.0, "a.b.d": 2.0, "a.e": 3.0},
			want: map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0, "d": 2.0}, "e": 3.0}},
		},
		{
			name: "empty",
			in:   map[string]any{},
			want: map[string]any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Unflatten(tt.in)); diff != "" {
				t.Errorf("Unflatten() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	cfg := sampleConfig()
	m, err := ToMap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, Unflatten(Flatten(m))); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestKeys(t *testing.T) {
	got := Keys(map[string]any{"llm.model": 1, "data_dir": 2, "http.listen": 3})
	want := []string{"data_dir", "http.listen", "llm.model"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestIsSecretKey(t *testing.T) {
	tests := map[string]bool{
		"llm.api_key":         true,
		"api_key":             true,
		"notify.token":        true,
		"smtp.password":       true,
		"llm.model":           false,
		"http.listen":         false,
		"token_budget.window": false,
	}
	for key, want := range tests {
		if got := IsSecretKey(key); got != want {
			t.Errorf("IsSecretKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestMask(t *testing.T) {
	tests := []struct{ in, want string }{
		{"sk-abc123xyz789", "***z789"},
		{"abcd", "***abcd"},
		{"ab", "***ab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.api_key": "sk-abc123xyz789",
		"llm.model":   "gpt-4o",
		"x.token":     42.0,
		"notify.url":  "http://localhost:3000",
	}
	want := map[string]any{
		"llm.api_key": "***z789",
		"llm.model":   "gpt-4o",
		"x.token":     42.0,
		"notify.url":  "http://localhost:3000",
	}
	got := MaskSecrets(flat)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MaskSecrets() mismatch (-want +got):\n%s", diff)
	}
	if flat["llm.api_key"] != "sk-abc123xyz789" {
		t.Error("MaskSecrets must not modify its input")
	}
	if got := MaskSecrets(nil); got == nil || len(got) != 0 {
		t.Errorf("MaskSecrets(nil) = %v", got)
	}
}
