package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestPlainTextPassthrough(t *testing.T) {
	text, err := FromDocument("resume.txt", "text/plain", []byte("  John Doe\nEngineer  "), 0)
	if err != nil {
		t.Fatalf("FromDocument error = %v", err)
	}
	if text != "John Doe\nEngineer" {
		t.Fatalf("FromDocument = %q", text)
	}
}

func TestExtensionFallback(t *testing.T) {
	text, err := FromDocument("RESUME.TXT", "application/octet-stream", []byte("hello"), 0)
	if err != nil {
		t.Fatalf("FromDocument error = %v", err)
	}
	if text != "hello" {
		t.Fatalf("FromDocument = %q", text)
	}
}

func TestTooLarge(t *testing.T) {
	data := []byte(strings.Repeat("x", 100))
	_, err := FromDocument("resume.txt", "text/plain", data, 50)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("FromDocument error = %v, want ErrTooLarge", err)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := FromDocument("resume.odt", "application/vnd.oasis.opendocument.text", []byte("x"), 0)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("FromDocument error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestEmptyDocument(t *testing.T) {
	_, err := FromDocument("resume.txt", "text/plain", []byte("   \n  "), 0)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("FromDocument error = %v, want ErrEmptyDocument", err)
	}
}

func TestCorruptPDF(t *testing.T) {
	_, err := FromDocument("resume.pdf", "application/pdf", []byte("not a pdf"), 0)
	if err == nil {
		t.Fatalf("FromDocument should fail on corrupt pdf")
	}
}
