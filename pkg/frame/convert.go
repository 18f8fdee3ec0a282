package frame

import "github.com/pkg/errors"

// ToRGBA converts a frame from its native format to the 4-channel display
// format. The source is left untouched; the result owns a new buffer.
func ToRGBA(src Frame) (Frame, error) {
	if err := src.Validate(); err != nil {
		return Frame{}, errors.Wrap(err, "convert to rgba")
	}

	n := src.Width * src.Height
	dst := make([]byte, n*4)
	s := src.Pix

	switch src.Format {
	case FormatRGBA:
		copy(dst, s)
	case FormatBGRA:
		for i := 0; i < n; i++ {
			o := i * 4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = s[o+2], s[o+1], s[o], s[o+3]
		}
	case FormatBGR:
		for i := 0; i < n; i++ {
			o, p := i*4, i*3
			dst[o], dst[o+1], dst[o+2], dst[o+3] = s[p+2], s[p+1], s[p], 0xff
		}
	case FormatGray:
		for i := 0; i < n; i++ {
			o := i * 4
			dst[o], dst[o+1], dst[o+2], dst[o+3] = s[i], s[i], s[i], 0xff
		}
	default:
		return Frame{}, errors.Errorf("convert to rgba: unsupported format %s", src.Format)
	}

	return Frame{
		Width:     src.Width,
		Height:    src.Height,
		Format:    FormatRGBA,
		Pix:       dst,
		Seq:       src.Seq,
		Timestamp: src.Timestamp,
	}, nil
}
