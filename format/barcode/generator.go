package barcode

import (
	"errors"

	"serialbridge/format"
)

// GenerateBarcodeLine returns a random code from the context pool
func GenerateBarcodeLine(ctx *format.GenerationContext) (*format.Line, error) {
	code := ctx.RandomBarcode()
	if code == "" {
		return nil, errors.New("barcode pool is empty")
	}
	ctx.NextLineNumber()
	return ctx.NewLine("barcode", code), nil
}
