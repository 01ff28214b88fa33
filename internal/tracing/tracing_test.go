package tracing

import "testing"

func TestNewProvider_TLSConfigurations(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{
			name:        "insecure skip verify",
			cfg:         Config{Enabled: true, Endpoint: "localhost:4317", TLSInsecure: true},
			expectError: false,
		},
		{
			name:        "missing CA file",
			cfg:         Config{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: "/nonexistent/ca.crt"},
			expectError: true,
		},
		{
			name:        "no TLS",
			cfg:         Config{Enabled: true, Endpoint: "localhost:4317"},
			expectError: false,
		},
		{
			name:        "disabled requires no endpoint",
			cfg:         Config{Enabled: false},
			expectError: false,
		},
		{
			name:        "enabled without endpoint fails",
			cfg:         Config{Enabled: true},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if provider.enabled != tt.cfg.Enabled {
				t.Fatalf("enabled=%v, want %v", provider.enabled, tt.cfg.Enabled)
			}
		})
	}
}

func TestProvider_DisabledLifecycle(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := provider.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := provider.Stop(nil); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if provider.IsEnabled() {
		t.Fatalf("expected disabled provider")
	}
}
