package scale

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialbridge/format"
)

func TestGenerateWeightLine(t *testing.T) {
	ctx := format.NewGenerationContext(7)
	twoDecimals := regexp.MustCompile(`^\d+\.\d{2}$`)

	for i := 0; i < 100; i++ {
		line, err := GenerateWeightLine(ctx)
		require.NoError(t, err)
		assert.Equal(t, "scale", line.Format)
		assert.Regexp(t, twoDecimals, line.Text)

		r, err := ParseWeight(line.Text)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r.Weight, 0.1)
		assert.LessOrEqual(t, r.Weight, 10.1)
	}
	assert.Equal(t, 100, ctx.LineNumber)
}

func TestGenerateWeightLine_BadRange(t *testing.T) {
	ctx := format.NewGenerationContext(7)
	ctx.MinWeight, ctx.MaxWeight = 5, 5
	_, err := GenerateWeightLine(ctx)
	assert.Error(t, err)
}

func TestParseWeight(t *testing.T) {
	r, err := ParseWeight("12.34")
	require.NoError(t, err)
	assert.Equal(t, "scale", r.Kind)
	assert.Equal(t, "12.34", r.Raw)
	assert.InDelta(t, 12.34, r.Weight, 1e-9)

	_, err = ParseWeight("12,34")
	assert.Error(t, err)
	_, err = ParseWeight("")
	assert.Error(t, err)
}

func TestScaleFormat(t *testing.T) {
	f := &ScaleFormat{}
	assert.True(t, f.Matches("0.10"))
	assert.False(t, f.Matches("ABC123"))
	assert.False(t, f.Matches(" 1.0"))
}
