package barcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialbridge/format"
)

func TestGenerateBarcodeLine(t *testing.T) {
	ctx := format.NewGenerationContext(3)
	for i := 0; i < 50; i++ {
		line, err := GenerateBarcodeLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, "barcode", line.Format)
		assert.Contains(t, ctx.Barcodes, line.Text)
		assert.True(t, IsBarcode(line.Text))
	}
}

func TestGenerateBarcodeLine_EmptyPool(t *testing.T) {
	ctx := format.NewGenerationContext(3)
	ctx.Barcodes = nil
	_, err := GenerateBarcodeLine(ctx)
	assert.EqualError(t, err, "barcode pool is empty")
}

func TestParseBarcode(t *testing.T) {
	r, err := ParseBarcode("ABC123DEF456")
	require.NoError(t, err)
	assert.Equal(t, "ABC123DEF456", r.Code)

	_, err = ParseBarcode("ABC12")
	assert.Error(t, err)
}

func TestBarcodeFormat(t *testing.T) {
	f := &BarcodeFormat{}
	assert.True(t, f.Matches("555666777888"))
	assert.False(t, f.Matches("12345"))
	assert.Less(t, 10, f.Priority())
}
