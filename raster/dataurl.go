package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"strings"
)

// EncodeDataURL builds a base64 data URI such as "data:image/png;base64,...".
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data URI into its media type and payload.
func DecodeDataURL(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, fmt.Errorf("not a data url")
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("data url has no payload separator")
	}

	params := strings.Split(header, ";")
	contentType := params[0]
	if contentType == "" {
		contentType = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("decode base64 payload: %w", err)
		}
		return contentType, data, nil
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("unescape payload: %w", err)
	}
	return contentType, []byte(unescaped), nil
}

// DecodeImage decodes the image embedded in a data URI.
func DecodeImage(s string) (image.Image, error) {
	contentType, data, err := DecodeDataURL(s)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("data url holds %s, not an image", contentType)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", contentType, err)
	}
	return img, nil
}

// EncodePNG encodes img as a PNG data URI.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return EncodeDataURL("image/png", buf.Bytes()), nil
}
