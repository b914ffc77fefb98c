package anyllm

import "testing"

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("empty providerName should be rejected")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("empty model should be rejected")
	}
	if _, err := New("not-a-provider", "some-model"); err == nil {
		t.Error("unsupported provider should be rejected")
	}
}

func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model      string
		wantVision bool
		wantWindow int
	}{
		{model: "gpt-4o", wantVision: true, wantWindow: 128_000},
		{model: "claude-3-5-sonnet-latest", wantVision: true, wantWindow: 200_000},
		{model: "gemini-1.5-pro", wantVision: true, wantWindow: 2_097_152},
		{model: "gemini-2.0-flash", wantVision: true, wantWindow: 1_048_576},
		{model: "o1-mini", wantVision: false, wantWindow: 200_000},
		{model: "llama3", wantVision: false, wantWindow: 128_000},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			caps := modelCapabilities(tt.model)
			if caps.SupportsVision != tt.wantVision {
				t.Errorf("SupportsVision = %v, want %v", caps.SupportsVision, tt.wantVision)
			}
			if caps.ContextWindow != tt.wantWindow {
				t.Errorf("ContextWindow = %d, want %d", caps.ContextWindow, tt.wantWindow)
			}
		})
	}
}
