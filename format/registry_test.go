package format_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialbridge/format"
	_ "serialbridge/format/barcode"
	_ "serialbridge/format/scale"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"barcode", "scale"}, format.List())
	assert.Equal(t, 2, format.Count())

	f, err := format.Get("SCALE")
	require.NoError(t, err)
	assert.Equal(t, "scale", f.Name())

	_, err = format.Get("rfid")
	assert.EqualError(t, err, "unknown format: rfid")

	err = format.Register(f)
	assert.Error(t, err)

	seen := map[string]bool{}
	format.ForEach(func(name string, _ format.DeviceFormat) { seen[name] = true })
	assert.Equal(t, map[string]bool{"barcode": true, "scale": true}, seen)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"12.34", "scale"},
		{"5", "scale"},
		{"10.", "scale"},
		{"1234567890123", "scale"},
		{"ABC123DEF456", "barcode"},
		{"ABC123", "barcode"},
		{"ABC12", format.KindUnknown},
		{"-1.5", format.KindUnknown},
		{"TEST", format.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			assert.Equal(t, tt.want, format.Classify(tt.payload))
		})
	}
}

func TestParse(t *testing.T) {
	r, err := format.Parse("7.25")
	require.NoError(t, err)
	assert.Equal(t, "scale", r.Kind)
	assert.InDelta(t, 7.25, r.Weight, 1e-9)

	r, err = format.Parse("ABC123DEF456")
	require.NoError(t, err)
	assert.Equal(t, "barcode", r.Kind)
	assert.Equal(t, "ABC123DEF456", r.Code)

	r, err = format.Parse("OK")
	require.NoError(t, err)
	assert.Equal(t, format.KindUnknown, r.Kind)
	assert.Equal(t, "OK", r.Raw)
}

func TestGenerationContext(t *testing.T) {
	ctx := format.NewGenerationContext(42)
	for i := 0; i < 200; i++ {
		w := ctx.RandomWeight()
		assert.GreaterOrEqual(t, w, 0.1)
		assert.Less(t, w, 10.1)
		assert.Contains(t, ctx.Barcodes, ctx.RandomBarcode())
	}
	assert.Equal(t, 1, ctx.NextLineNumber())

	line := ctx.NewLine("scale", "1.00")
	assert.Equal(t, "1.00\r\n", string(line.Output()))
}
