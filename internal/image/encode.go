package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
)

// EncodePNG serializes img losslessly.
func EncodePNG(img stdimage.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToPNG decodes an image in any registered format and re-encodes it as PNG.
// PNG input is returned unchanged.
func ToPNG(data []byte) ([]byte, error) {
	img, format, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding rendered image: %w", err)
	}
	if format == "png" {
		return data, nil
	}
	return EncodePNG(img)
}

func ToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
