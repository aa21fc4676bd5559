package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/nfnt/resize"
)

// Avatar processing parameters.
const (
	AvatarWidth       = 300
	AvatarJPEGQuality = 80
	MaxAvatarBytes    = 5 << 20
)

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
}

// CompressAvatar decodes a JPEG or PNG upload, scales it to AvatarWidth
// keeping the aspect ratio and re-encodes it as JPEG.
func CompressAvatar(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if len(raw) == 0 || len(raw) > MaxAvatarBytes {
		return nil, ErrUnsupportedImage
	}
	if _, ok := allowedImageTypes[http.DetectContentType(raw)]; !ok {
		return nil, ErrUnsupportedImage
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrUnsupportedImage.WithInternal(err)
	}

	resized := resize.Resize(AvatarWidth, 0, img, resize.Lanczos3)
	var out bytes.Buffer
	if err := jpeg.Encode(&out, resized, &jpeg.Options{Quality: AvatarJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return out.Bytes(), nil
}
