// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdiddy/miranda/internal/container"
)

const imageMarkitdown = "markitdown:latest"

// MarkitdownConverter converts documents by piping them through the
// markitdown container image. It depends on a container.Runtime (docker or
// podman) injected at construction time.
type MarkitdownConverter struct {
	runtime container.Runtime
}

// NewMarkitdownConverter creates a converter that uses the given container
// runtime to run the markitdown image. It verifies that the markitdown image
// exists locally before returning.
func NewMarkitdownConverter(rt container.Runtime) (*MarkitdownConverter, error) {
	if err := rt.ImageExists(imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownConverter{runtime: rt}, nil
}

// Convert pipes content through the markitdown container and returns the
// resulting Markdown text.
func (m *MarkitdownConverter) Convert(ctx context.Context, filename string, content []byte) (string, error) {
	var out bytes.Buffer
	if err := m.runtime.Run(ctx, imageMarkitdown, bytes.NewReader(content), &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", filename, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("markitdown produced empty output for %s", filename)
	}
	return out.String(), nil
}

// Detect returns a markitdown converter on the named container runtime, or
// on the first usable one when runtime is empty.
func Detect(runtime string) (Converter, error) {
	rt, err := container.Detect(runtime, container.DefaultLimits)
	if err != nil {
		return nil, err
	}
	c, err := NewMarkitdownConverter(rt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
