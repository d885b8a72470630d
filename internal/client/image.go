package client

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// maxImageBytes is the largest payload the vision provider accepts
// without downscaling.
const maxImageBytes = 5 * 1024 * 1024

func fetchImage(ctx context.Context, httpClient *http.Client, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// shrinkImage re-encodes an oversized image as a half-width JPEG,
// preserving aspect ratio. If the result is still over the limit it is
// re-encoded once more at lower quality.
func shrinkImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported image format: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx()/2, bounds.Dy()/2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if buf.Len() > maxImageBytes {
		buf.Reset()
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 65}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
	}
	return buf.Bytes(), nil
}
