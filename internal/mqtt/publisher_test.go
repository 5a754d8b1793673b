package mqtt

import "testing"

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{name: "float shortest form", value: 21.5, expected: "21.5"},
		{name: "float integral", value: 45.0, expected: "45"},
		{name: "float negative", value: -3.0, expected: "-3"},
		{name: "int64", value: int64(3600), expected: "3600"},
		{name: "string passthrough", value: "livingroom", expected: "livingroom"},
		{name: "unsupported type", value: struct{}{}, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.value); got != tt.expected {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.value, got, tt.expected)
			}
		})
	}
}
