package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want Format
	}{
		{"pdf magic", "drawing.bin", "%PDF-1.7\n...", FormatPDF},
		{"html sniffed", "page", "<!DOCTYPE html><html><body>x</body></html>", FormatHTML},
		{"html by extension", "part-d.html", "<section>Part D</section>", FormatHTML},
		{"plain text", "ocr.txt", "DOOR WIDTH 900 mm", FormatText},
		{"binary", "image.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.file, []byte(tt.data)); got != tt.want {
				t.Errorf("DetectFormat(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestHTMLText(t *testing.T) {
	page := `<html><head><title>NCC</title><style>p{color:red}</style></head>
<body>
<script>var x = 1;</script>
<h2>D2.13 Goings and risers</h2>
<p>Risers must be not more than
   <b>190 mm</b>.</p>
<ul><li>Goings not less than 240 mm</li></ul>
</body></html>`

	text, err := HTMLText([]byte(page))
	if err != nil {
		t.Fatalf("HTMLText failed: %v", err)
	}

	if strings.Contains(text, "var x") || strings.Contains(text, "color:red") {
		t.Errorf("Expected script and style to be skipped, got %q", text)
	}

	paragraphs := strings.Split(text, "\n\n")
	want := []string{
		"NCC",
		"D2.13 Goings and risers",
		"Risers must be not more than 190 mm .",
		"Goings not less than 240 mm",
	}
	if len(paragraphs) != len(want) {
		t.Fatalf("Expected %d paragraphs, got %d: %q", len(want), len(paragraphs), paragraphs)
	}
	for i := range want {
		if paragraphs[i] != want[i] {
			t.Errorf("paragraph %d: expected %q, got %q", i, want[i], paragraphs[i])
		}
	}
}

func TestDocumentText(t *testing.T) {
	text, err := DocumentText("ocr.txt", []byte("WIDTH 900 MM"))
	if err != nil || text != "WIDTH 900 MM" {
		t.Errorf("Expected text passthrough, got %q %v", text, err)
	}

	_, err = DocumentText("image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	if !errors.Is(err, ErrUnsupportedDocument) {
		t.Errorf("Expected ErrUnsupportedDocument, got %v", err)
	}

	if _, err := DocumentText("broken.pdf", []byte("%PDF-1.4\nnot really a pdf")); err == nil {
		t.Error("Expected an error for a malformed PDF")
	}
}
