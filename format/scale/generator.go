package scale

import (
	"fmt"

	"serialbridge/format"
)

// GenerateWeightLine creates a weight with two decimals from the context range
func GenerateWeightLine(ctx *format.GenerationContext) (*format.Line, error) {
	if ctx.MaxWeight <= ctx.MinWeight {
		return nil, fmt.Errorf("invalid weight range [%.2f, %.2f)", ctx.MinWeight, ctx.MaxWeight)
	}
	ctx.NextLineNumber()
	return ctx.NewLine("scale", fmt.Sprintf("%.2f", ctx.RandomWeight())), nil
}
