package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		f       Frame
		wantErr bool
	}{
		{"bgr ok", Frame{Width: 2, Height: 1, Format: FormatBGR, Pix: make([]byte, 6)}, false},
		{"rgba ok", Frame{Width: 2, Height: 2, Format: FormatRGBA, Pix: make([]byte, 16)}, false},
		{"gray ok", Frame{Width: 3, Height: 1, Format: FormatGray, Pix: make([]byte, 3)}, false},
		{"short buffer", Frame{Width: 2, Height: 2, Format: FormatRGBA, Pix: make([]byte, 15)}, true},
		{"zero width", Frame{Width: 0, Height: 2, Format: FormatRGBA}, true},
		{"unknown format", Frame{Width: 1, Height: 1, Pix: make([]byte, 1)}, true},
	}
	for _, tt := range tests {
		err := tt.f.Validate()
		if tt.wantErr {
			assert.Error(t, err, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
	}
}

func TestFormatForChannels(t *testing.T) {
	assert.Equal(t, FormatGray, FormatForChannels(1))
	assert.Equal(t, FormatBGR, FormatForChannels(3))
	assert.Equal(t, FormatBGRA, FormatForChannels(4))
	assert.Equal(t, FormatUnknown, FormatForChannels(2))
}

func TestToRGBA(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		pix    []byte
		want   []byte
	}{
		{"bgr", FormatBGR, []byte{1, 2, 3, 4, 5, 6}, []byte{3, 2, 1, 255, 6, 5, 4, 255}},
		{"bgra", FormatBGRA, []byte{1, 2, 3, 9, 4, 5, 6, 8}, []byte{3, 2, 1, 9, 6, 5, 4, 8}},
		{"gray", FormatGray, []byte{7, 200}, []byte{7, 7, 7, 255, 200, 200, 200, 255}},
		{"rgba", FormatRGBA, []byte{1, 2, 3, 4, 5, 6, 7, 8}, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		src, err := New(2, 1, tt.format, tt.pix)
		require.NoError(t, err, tt.name)
		src.Seq = 42

		got, err := ToRGBA(src)
		require.NoError(t, err, tt.name)
		assert.Equal(t, FormatRGBA, got.Format, tt.name)
		assert.Equal(t, tt.want, got.Pix, tt.name)
		assert.Equal(t, uint64(42), got.Seq, tt.name)
	}
}

func TestToRGBADoesNotAliasSource(t *testing.T) {
	src, err := New(1, 1, FormatRGBA, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	got, err := ToRGBA(src)
	require.NoError(t, err)
	got.Pix[0] = 99
	assert.Equal(t, byte(1), src.Pix[0])
}

func TestToRGBARejectsInvalid(t *testing.T) {
	_, err := ToRGBA(Frame{Width: 2, Height: 2, Format: FormatBGR, Pix: make([]byte, 3)})
	assert.Error(t, err)
}
