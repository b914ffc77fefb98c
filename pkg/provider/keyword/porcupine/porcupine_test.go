package porcupine

import "testing"

func TestNew_RequiresAccessKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("empty access key should be rejected")
	}
}

func TestCanSpot(t *testing.T) {
	e, err := New("key", WithKeywordModel("Hey Glasses", "/models/hey_glasses.ppn"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		phrase string
		want   bool
	}{
		{"jarvis", true},        // built-in
		{"  Hey Google ", true}, // built-in, normalized
		{"hey glasses", true},   // custom model
		{"HEY GLASSES", true},   // custom model, normalized
		{"open sesame", false},
	}
	for _, tt := range tests {
		if got := e.CanSpot(tt.phrase); got != tt.want {
			t.Errorf("CanSpot(%q) = %v, want %v", tt.phrase, got, tt.want)
		}
	}
}

func TestOpen_UnspottablePhrase(t *testing.T) {
	e, err := New("key")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Open("open sesame"); err == nil {
		t.Error("unspottable phrase should be rejected before native init")
	}
}
