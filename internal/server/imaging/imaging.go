// Package imaging shrinks uploaded images before they are stored: decode,
// scale the longest side down to a bound, and re-encode as JPEG under a
// byte budget.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
	ErrTooLarge         = errors.New("image too large")
)

// ContentType of every Compress result.
const ContentType = "image/jpeg"

type Options struct {
	MaxDimension  int   // longest side in pixels
	MaxBytes      int   // budget for the encoded result
	MaxInputBytes int64 // raw input cap
	StartQuality  int
	MinQuality    int
	QualityStep   int
}

// DefaultOptions: 1920px, 1 MiB output, 20 MiB input, JPEG quality 85 down to 35.
func DefaultOptions() Options {
	return Options{
		MaxDimension:  1920,
		MaxBytes:      1 << 20,
		MaxInputBytes: 20 << 20,
		StartQuality:  85,
		MinQuality:    35,
		QualityStep:   10,
	}
}

// Result is a compressed image.
type Result struct {
	Data          []byte
	Width, Height int
	Quality       int
}

// Compress decodes r (jpeg, png, gif or webp), scales it so neither side
// exceeds opts.MaxDimension and encodes it as JPEG, lowering the quality
// until the output fits opts.MaxBytes.
func Compress(r io.Reader, opts Options) (*Result, error) {
	raw, err := io.ReadAll(io.LimitReader(r, opts.MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(raw)) > opts.MaxInputBytes {
		return nil, fmt.Errorf("%w: input exceeds %d bytes", ErrTooLarge, opts.MaxInputBytes)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}

	dst := scale(src, opts.MaxDimension)
	b := dst.Bounds()

	var buf bytes.Buffer
	for q := opts.StartQuality; q >= opts.MinQuality; q -= opts.QualityStep {
		buf.Reset()
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		if buf.Len() <= opts.MaxBytes {
			return &Result{Data: bytes.Clone(buf.Bytes()), Width: b.Dx(), Height: b.Dy(), Quality: q}, nil
		}
	}

	return nil, fmt.Errorf("%w: %d bytes at quality %d", ErrTooLarge, buf.Len(), opts.MinQuality)
}

// scale returns src fitted into maxDim×maxDim on an opaque white canvas,
// since JPEG has no alpha channel.
func scale(src image.Image, maxDim int) *image.RGBA {
	sb := src.Bounds()
	w, h := fit(sb.Dx(), sb.Dy(), maxDim)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	return dst
}

// fit scales (w, h) down proportionally so the longest side is at most maxDim.
func fit(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}
