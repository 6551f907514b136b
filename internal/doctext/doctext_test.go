package doctext

import (
	"context"
	"errors"
	"testing"

	"github.com/pavelanni/assessor/internal/model"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		doc     model.SourceDocument
		want    string
		wantErr bool
	}{
		{
			name: "plain text",
			doc:  model.SourceDocument{Name: "notes.txt", MediaType: "text/plain", Data: []byte("Cells  are\n\tthe unit of life.")},
			want: "Cells are the unit of life.",
		},
		{
			name: "markdown sniffed as text",
			doc:  model.SourceDocument{Name: "notes.md", Data: []byte("# Photosynthesis\n\nPlants make sugar.")},
			want: "# Photosynthesis Plants make sugar.",
		},
		{
			name:    "empty",
			doc:     model.SourceDocument{Name: "empty.pdf", MediaType: "application/pdf"},
			wantErr: true,
		},
		{
			name:    "claims pdf without header",
			doc:     model.SourceDocument{Name: "scan.pdf", MediaType: "application/pdf", Data: []byte("<html>error page</html>")},
			wantErr: true,
		},
		{
			name:    "corrupt pdf",
			doc:     model.SourceDocument{Name: "broken.pdf", MediaType: "application/pdf", Data: []byte("%PDF-1.4\n%%garbage without xref")},
			wantErr: true,
		},
		{
			name:    "binary",
			doc:     model.SourceDocument{Name: "image.png", MediaType: "image/png", Data: []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}},
			wantErr: true,
		},
	}

	e := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ExtractText(context.Background(), tt.doc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTextUnsupported(t *testing.T) {
	_, err := New(nil).ExtractText(context.Background(), model.SourceDocument{Name: "x.bin", Data: []byte{0x00, 0x01, 0x02}})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("ExtractText() error = %v, want ErrUnsupported", err)
	}
}

func TestExtractTextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).ExtractText(ctx, model.SourceDocument{Data: []byte("text")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ExtractText() error = %v, want context.Canceled", err)
	}
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		data     []byte
		declared string
		want     string
	}{
		{[]byte("%PDF-1.7"), "application/octet-stream", "application/pdf"},
		{[]byte("%PDF-1.7"), "", "application/pdf"},
		{[]byte("hello"), "", "text/plain"},
		{[]byte("hello"), "text/markdown", "text/markdown"},
		{[]byte{0x00, 0xff}, "application/octet-stream", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := MediaType(tt.data, tt.declared); got != tt.want {
			t.Errorf("MediaType(%q, %q) = %q, want %q", tt.data, tt.declared, got, tt.want)
		}
	}
}
