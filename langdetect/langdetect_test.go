package langdetect

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCode string
		wantName string
	}{
		{
			name:     "english sentence",
			text:     "that boss fight was absolutely incredible, did you see the dodge",
			wantCode: "en",
			wantName: "English",
		},
		{
			name:     "chinese sentence",
			text:     "这波操作太精彩了，主播打得真好",
			wantCode: "zh",
			wantName: "Chinese",
		},
		{
			name: "empty input",
			text: "",
		},
		{
			name: "whitespace only",
			text: "   \n\t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, name := Detect(tt.text)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
		})
	}
}
