package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaces(t *testing.T) {
	testCases := []struct {
		name       string
		descriptor string
		expected   int
	}{
		{name: "standard d20", descriptor: "d20", expected: 20},
		{name: "small die", descriptor: "d6", expected: 6},
		{name: "large die", descriptor: "d100", expected: 100},
		{name: "uppercase", descriptor: "D12", expected: 12},
		{name: "surrounding whitespace", descriptor: "  d8 ", expected: 8},
		{name: "empty descriptor", descriptor: "", expected: DefaultFaces},
		{name: "missing prefix", descriptor: "20", expected: DefaultFaces},
		{name: "not a number", descriptor: "dtwenty", expected: DefaultFaces},
		{name: "zero faces", descriptor: "d0", expected: DefaultFaces},
		{name: "negative faces", descriptor: "d-4", expected: DefaultFaces},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Faces(tc.descriptor))
		})
	}
}

func TestRoll_WithinBounds(t *testing.T) {
	roller := NewSeeded(42)
	for i := 0; i < 1000; i++ {
		result := roller.Roll("d20")
		assert.GreaterOrEqual(t, result, 1)
		assert.LessOrEqual(t, result, 20)
	}
}

func TestRoll_UnparsableDescriptorUsesDefault(t *testing.T) {
	roller := NewSeeded(7)
	for i := 0; i < 1000; i++ {
		result := roller.Roll("???")
		assert.GreaterOrEqual(t, result, 1)
		assert.LessOrEqual(t, result, DefaultFaces)
	}
}

func TestRoll_CoversAllFaces(t *testing.T) {
	roller := NewSeeded(1)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		seen[roller.Roll("d4")] = true
	}
	assert.Len(t, seen, 4)
}
