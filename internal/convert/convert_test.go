// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pdiddy/miranda/pkg/types"
)

// fakeConverter implements Converter for testing. It returns canned Markdown
// or an error, depending on configuration.
type fakeConverter struct {
	output string
	err    error
	calls  int
}

func (f *fakeConverter) Convert(_ context.Context, _ string, _ []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// fakeRuntime implements container.Runtime for testing.
type fakeRuntime struct {
	imageErr error
	runFunc  func(stdin io.Reader, stdout io.Writer) error
}

func (f *fakeRuntime) Name() string                   { return "docker" }
func (f *fakeRuntime) ImageExists(image string) error { return f.imageErr }
func (f *fakeRuntime) Run(_ context.Context, _ string, stdin io.Reader, stdout io.Writer) error {
	return f.runFunc(stdin, stdout)
}

func TestText(t *testing.T) {
	tests := []struct {
		name      string
		doc       types.Document
		content   string
		converter *fakeConverter
		want      string
		wantErr   error
	}{
		{
			name:    "text passes through",
			doc:     types.Document{Filename: "a.md"},
			content: "# Title\n\nBody",
			want:    "# Title\n\nBody",
		},
		{
			name:    "frontmatter stripped",
			doc:     types.Document{Filename: "a.md"},
			content: "---\ntitle: x\n---\n\n# Body",
			want:    "# Body",
		},
		{
			name:      "binary converted",
			doc:       types.Document{Filename: "a.pdf", Binary: true},
			content:   "%PDF",
			converter: &fakeConverter{output: "# Converted"},
			want:      "# Converted",
		},
		{
			name:    "binary without converter",
			doc:     types.Document{Filename: "a.pdf", Binary: true},
			content: "%PDF",
			wantErr: ErrNoConverter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Converter
			if tt.converter != nil {
				c = tt.converter
			}
			got, err := Text(context.Background(), c, tt.doc, []byte(tt.content))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestText_ConverterFailure(t *testing.T) {
	conv := &fakeConverter{err: errors.New("container crashed")}
	_, err := Text(context.Background(), conv, types.Document{Filename: "a.docx", Binary: true}, []byte("PK"))
	if err == nil || !strings.Contains(err.Error(), "container crashed") {
		t.Fatalf("expected wrapped converter error, got %v", err)
	}
}

func TestText_EmptyConversion(t *testing.T) {
	conv := &fakeConverter{output: "   "}
	_, err := Text(context.Background(), conv, types.Document{Filename: "a.docx", Binary: true}, []byte("PK"))
	if err == nil {
		t.Fatal("expected error for empty conversion")
	}
}

func TestMarkitdownConverter(t *testing.T) {
	rt := &fakeRuntime{runFunc: func(stdin io.Reader, stdout io.Writer) error {
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write([]byte("# " + string(data)))
		return nil
	}}
	m, err := NewMarkitdownConverter(rt)
	if err != nil {
		t.Fatal(err)
	}
	out, err := m.Convert(context.Background(), "deck.pptx", []byte("slides"))
	if err != nil {
		t.Fatal(err)
	}
	if out != "# slides" {
		t.Errorf("got %q", out)
	}
}

func TestMarkitdownConverter_MissingImage(t *testing.T) {
	_, err := NewMarkitdownConverter(&fakeRuntime{imageErr: errors.New("no such image")})
	if err == nil || !strings.Contains(err.Error(), "markitdown image not available") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMarkitdownConverter_EmptyOutput(t *testing.T) {
	rt := &fakeRuntime{runFunc: func(io.Reader, io.Writer) error { return nil }}
	m, err := NewMarkitdownConverter(rt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Convert(context.Background(), "a.pdf", []byte("x")); err == nil {
		t.Fatal("expected error for empty output")
	}
}
