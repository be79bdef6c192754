package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	diffimage "pixelview/internal/diff/image"
	"pixelview/internal/geometry"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/storage"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

type Encoding string

const (
	RawEncoding Encoding = "raw"
	PNGEncoding Encoding = "png"
)

var UnknownEncodingError = errors.New("unknown encoding")

func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(s)); e {
	case RawEncoding, PNGEncoding:
		return e, nil
	case "":
		return RawEncoding, nil
	}
	return "", xerrors.Errorf("%q: %w", s, UnknownEncodingError)
}

// Outcome classifies a result for metrics and logs.
func Outcome(result *diffimage.DiffResult) string {
	switch {
	case result.Diagnostic != nil:
		return "invalid"
	case result.IsDiff:
		return "different"
	}
	return "equal"
}

const (
	DeltaImageRGB   = "deltaImageRGB"
	DeltaImageAlpha = "deltaImageAlpha"
	AlphaImage1     = "alphaImage1"
	AlphaImage2     = "alphaImage2"
)

type Report struct {
	Image1      string            `json:"image1,omitempty"`
	Image2      string            `json:"image2,omitempty"`
	CompareType string            `json:"compareType"`
	IsDiff      bool              `json:"isDiff"`
	Diagnostic  map[string]string `json:"diagnostic,omitempty"`
	Details     *Details          `json:"details,omitempty"`
}

type Details struct {
	Geometry1          geometry.Geometry      `json:"geometry1"`
	Geometry2          geometry.Geometry      `json:"geometry2"`
	PixelDiffCount     int64                  `json:"pixelDiffCount"`
	AbsDiffCount       int64                  `json:"absDiffCount"`
	MaxChannelDelta    uint8                  `json:"maxChannelDelta"`
	DiffAmount         float64                `json:"diffAmount"`
	DiffPixelRGBList   []diffimage.OffsetPair `json:"diffPixelRGBList,omitempty"`
	DiffPixelAlphaList []diffimage.OffsetPair `json:"diffPixelAlphaList,omitempty"`
	Regions            []geometry.Geometry    `json:"regions,omitempty"`
	// Artifacts holds base64 encoded images, or storage URLs when a storage
	// was given.
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

type Options struct {
	CompareType diffimage.CompareType
	Image1      string
	Image2      string
	// Artifacts includes the delta and alpha images.
	Artifacts bool
	Encoding  Encoding
	// Storage receives artifacts under KeyPrefix. nil inlines them.
	Storage   storage.Storage
	KeyPrefix string
	// RegionProximity below zero skips region detection.
	RegionProximity int
}

func New(ctx context.Context, result *diffimage.DiffResult, o Options) (*Report, error) {
	r := &Report{
		Image1:      o.Image1,
		Image2:      o.Image2,
		CompareType: o.CompareType.String(),
		IsDiff:      result.IsDiff,
	}
	if result.Diagnostic != nil {
		r.Diagnostic = result.Diagnostic.Fields()
	}
	if result.Details == nil {
		return r, nil
	}

	d := result.Details
	r.Details = &Details{
		Geometry1:        d.Geometry1,
		Geometry2:        d.Geometry2,
		PixelDiffCount:   d.PixelDiffCount,
		AbsDiffCount:     d.AbsDiffCount,
		MaxChannelDelta:  d.MaxChannelDelta,
		DiffAmount:       d.DiffAmount(),
		DiffPixelRGBList: d.DiffPixelRGBList,
	}
	if d.Alpha != nil {
		r.Details.DiffPixelAlphaList = d.Alpha.DiffPixelList
	}
	if o.RegionProximity >= 0 {
		r.Details.Regions = d.Regions(o.RegionProximity)
	}

	if o.Artifacts {
		artifacts, err := publish(ctx, d, o)
		if err != nil {
			return nil, err
		}
		r.Details.Artifacts = artifacts
	}

	return r, nil
}

func publish(ctx context.Context, d *diffimage.Details, o Options) (map[string]string, error) {
	images := map[string]*pixelbuf.PixelBuffer{
		DeltaImageRGB: d.DeltaImageRGB,
	}
	if d.Alpha != nil {
		images[DeltaImageAlpha] = d.Alpha.DeltaImage
		images[AlphaImage1] = d.Alpha.Image1
		images[AlphaImage2] = d.Alpha.Image2
	}

	urls := make([]string, len(images))
	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		eg.Go(func() error {
			data, ext, err := Encode(images[name], o.Encoding)
			if err != nil {
				return xerrors.Errorf("failed to encode %s: %w", name, err)
			}
			if o.Storage == nil {
				urls[i] = base64.StdEncoding.EncodeToString(data)
				return nil
			}

			url, err := o.Storage.Put(ctx, path.Join(o.KeyPrefix, name+ext), data)
			if err != nil {
				return xerrors.Errorf("failed to upload %s: %w", name, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	artifacts := make(map[string]string, len(names))
	for i, name := range names {
		artifacts[name] = urls[i]
	}
	return artifacts, nil
}

// Encode serialises b and returns the matching file extension.
func Encode(b *pixelbuf.PixelBuffer, e Encoding) ([]byte, string, error) {
	var buffer bytes.Buffer
	switch e {
	case RawEncoding, "":
		if err := b.Encode(&buffer); err != nil {
			return nil, "", err
		}
		return buffer.Bytes(), "." + strings.ToLower(b.Format.String()), nil
	case PNGEncoding:
		if err := b.EncodePNG(&buffer); err != nil {
			return nil, "", err
		}
		return buffer.Bytes(), ".png", nil
	}
	return nil, "", xerrors.Errorf("%s: %w", e, UnknownEncodingError)
}

// KeyPrefix derives a stable artifact prefix from the compared inputs.
func KeyPrefix(base string, index int, image1 string, image2 string) string {
	return path.Join(base, fmt.Sprintf("%04d-%s-%s", index, stem(image1), stem(image2)))
}

func stem(p string) string {
	name := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(name, path.Ext(name))
}
