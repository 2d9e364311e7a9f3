package cipher

import "testing"

func TestBase64Decode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "padded", input: "aGVsbG8=", want: "hello"},
		{name: "missing padding", input: "aGVsbG8", want: "hello"},
		{name: "whitespace", input: " aGVs\nbG8=\t", want: "hello"},
		{name: "two missing pads", input: "aGk", want: "hi"},
		{name: "url alphabet", input: "-_8=", wantErr: true},
		{name: "empty", input: "", want: ""},
		{name: "invalid characters", input: "not base64!!", wantErr: true},
		{name: "truncated", input: "aGVsb", wantErr: true},
		{name: "only padding", input: "==", wantErr: true},
	}

	codec := base64Codec{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Decode([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBase64Encode(t *testing.T) {
	if got := string(base64Codec{}.Encode([]byte("hello"))); got != "aGVsbG8=" {
		t.Errorf("expected aGVsbG8=, got %q", got)
	}
}

func TestRot13(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello, World!", "Uryyb, Jbeyq!"},
		{"flag{abc_XYZ}", "synt{nop_KLM}"},
		{"1234 \x00\xff", "1234 \x00\xff"},
	}
	codec := rot13Codec{}
	for _, tt := range tests {
		got := codec.Encode([]byte(tt.input))
		if string(got) != tt.want {
			t.Errorf("rot13(%q) = %q, want %q", tt.input, got, tt.want)
		}
		back, err := codec.Decode(got)
		if err != nil || string(back) != tt.input {
			t.Errorf("rot13 should be self-inverse: %q, %v", back, err)
		}
	}
}
