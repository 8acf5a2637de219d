package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdjustCursor(t *testing.T) {
	const prompt = "[prompt] "
	const maxNameLength = 6

	tests := []struct {
		name  string
		input string
		allow bool
		want  string
	}{
		{
			name:  "plain line untouched",
			input: "just text",
			want:  "just text",
		},
		{
			name:  "erase to start reprints prompt",
			input: "Text\x1b[1KPartial erase",
			want:  "Text\x1b[1K\x1b[s\x1b[G[prompt] \x1b[uPartial erase",
		},
		{
			name:  "erase whole line reprints prompt",
			input: "Text\x1b[2KFull erase",
			want:  "Text\x1b[2K\x1b[s\x1b[G[prompt] \x1b[uFull erase",
		},
		{
			name:  "carriage return redraw reprints prompt",
			input: "Line \rwith carriage return",
			want:  "Line \r[prompt] with carriage return",
		},
		{
			name:  "carriage return before erase left alone",
			input: "spinner\r\x1b[2Kdone",
			want:  "spinner\r\x1b[2K\x1b[s\x1b[G[prompt] \x1b[udone",
		},
		{
			name:  "column move shifted past prompt",
			input: "Move\x1b[1Gcolumn",
			allow: true,
			want:  "Move\x1b[10Gcolumn",
		},
		{
			name:  "cursor up stripped without cursor control",
			input: "up\x1b[1Athere",
			want:  "upthere",
		},
		{
			name:  "screen clear stripped without cursor control",
			input: "text\x1b[2J",
			want:  "text",
		},
		{
			name:  "cursor hide passes through with cursor control",
			input: "\x1b[?25lDownloading 42%\x1b[?25h",
			want:  "\x1b[?25lDownloading 42%\x1b[?25h",
			allow: true,
		},
		{
			name:  "cursor hide stripped whole without cursor control",
			input: "\x1b[?25lDownloading 42%\x1b[?25h",
			want:  "Downloading 42%",
		},
		{
			name:  "column move stripped without cursor control",
			input: "Move\x1b[5Gcolumn",
			want:  "Movecolumn",
		},
		{
			name:  "styling survives stripping",
			input: "\x1b[31mred\x1b[0m",
			want:  "\x1b[31mred\x1b[0m",
		},
		{
			name:  "trailing whitespace trimmed",
			input: "padded   \t",
			want:  "padded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustCursor(tt.input, prompt, maxNameLength, tt.allow)
			assert.Equal(t, tt.want, got)
		})
	}
}
