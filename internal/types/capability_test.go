package types

import "testing"

func TestParseCapability(t *testing.T) {
	tests := []struct {
		input string
		want  Capability
		valid bool
	}{
		{"translate", CapabilityTranslate, true},
		{"ocr", CapabilityExtract, true},
		{"generate", CapabilityGenerate, true},
		{"TRANSLATE", "", false},
		{"speech", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCapability(tt.input)
		if ok != tt.valid || got != tt.want {
			t.Errorf("ParseCapability(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.valid)
		}
	}
}

func TestCapabilitiesOrder(t *testing.T) {
	caps := Capabilities()
	if len(caps) != 3 {
		t.Fatalf("Capabilities() returned %d entries, want 3", len(caps))
	}
	if caps[0] != CapabilityTranslate || caps[2] != CapabilityGenerate {
		t.Errorf("Capabilities() order = %v", caps)
	}
}
