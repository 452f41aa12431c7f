// Package inference defines the contract between the search flow and the
// hosted model clients.
package inference

import "context"

// Generation parameters used for every recipe request.
const (
	Temperature     float32 = 0.4
	TopP            float32 = 0.8
	TopK            int32   = 40
	MaxOutputTokens int32   = 8000
)

// Image is an inline image attachment.
type Image struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Generator sends a prompt plus optional images to a model and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, prompt string, images []Image) (string, error)
}
