package cgroups

import "testing"

func TestVersionIsKnown(t *testing.T) {
	v := Version()
	if v != 1 && v != 2 {
		t.Fatalf("Version() = %d, want 1 or 2", v)
	}
}

func TestSetupRejectsBadLimits(t *testing.T) {
	m := New()

	tests := []struct {
		name string
		lim  Limits
	}{
		{"weight too large", Limits{CPUWeight: 20000}},
		{"negative weight", Limits{CPUWeight: -1}},
		{"negative memory", Limits{MemoryMax: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Setup("test", 1, &tt.lim); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestSetupRejectsBadPid(t *testing.T) {
	if _, err := New().Setup("test", 0, nil); err == nil {
		t.Fatal("expected error for pid 0, got nil")
	}
}
