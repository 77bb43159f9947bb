package datauri

import "testing"

func TestEncodeAndSplit(t *testing.T) {
	uri := Encode("image/jpeg", []byte("hello"))
	if uri != "data:image/jpeg;base64,aGVsbG8=" {
		t.Fatalf("Encode() = %q", uri)
	}
	mime, payload, err := Split(uri)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if mime != "image/jpeg" {
		t.Fatalf("mime = %q, want %q", mime, "image/jpeg")
	}
	if payload != "aGVsbG8=" {
		t.Fatalf("payload = %q, want %q", payload, "aGVsbG8=")
	}
}

func TestFromPayload(t *testing.T) {
	uri := FromPayload("image/jpeg", "aGVsbG8=")
	if uri != "data:image/jpeg;base64,aGVsbG8=" {
		t.Fatalf("FromPayload() = %q", uri)
	}
}

func TestSplitRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"missing scheme", "image/jpeg;base64,aGVsbG8="},
		{"missing comma", "data:image/jpeg;base64"},
		{"not base64", "data:text/plain;charset=utf-8,hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Split(tt.uri); err == nil {
				t.Fatalf("Split(%q) error = nil, want %v", tt.uri, ErrNotDataURI)
			}
		})
	}
}
