package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusForStock(t *testing.T) {
	tests := []struct {
		stock int
		want  Status
	}{
		{stock: 0, want: StatusSold},
		{stock: 1, want: StatusInStock},
		{stock: 100, want: StatusInStock},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForStock(tt.stock), "stock=%d", tt.stock)
	}
}

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"IN-STOCK", "RESERVED", "SOLD"} {
		s, ok := ParseStatus(valid)
		assert.True(t, ok, valid)
		assert.Equal(t, Status(valid), s)
	}

	for _, invalid := range []string{"", "sold", "in-stock", "UNKNOWN"} {
		_, ok := ParseStatus(invalid)
		assert.False(t, ok, invalid)
	}
}
