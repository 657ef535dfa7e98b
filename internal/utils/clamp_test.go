package utils

import "testing"

func TestClamp(t *testing.T) {
	testCases := []struct {
		name     string
		value    float64
		expected float64
	}{
		{name: "below", value: -5, expected: 0},
		{name: "inside", value: 60, expected: 60},
		{name: "above", value: 500, expected: 120},
		{name: "lower edge", value: 0, expected: 0},
		{name: "upper edge", value: 120, expected: 120},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := Clamp(testCase.value, 0, 120); got != testCase.expected {
				t.Fatalf("expected %v, got %v", testCase.expected, got)
			}
		})
	}
}
