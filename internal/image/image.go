package image

import (
	"bytes"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

const thumbSize = 512

// Processed holds the normalized full image, a map-marker thumbnail and the
// EXIF capture time when the upload carried one.
type Processed struct {
	Full    []byte
	Thumb   []byte
	TakenAt *time.Time
}

// Process decodes an uploaded photo, applies the EXIF orientation, and
// renders a JPEG pair: the full image and a thumbnail bounded to 512px.
func Process(data []byte) (Processed, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Processed{}, err
	}

	var full bytes.Buffer
	if err := imaging.Encode(&full, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return Processed{}, err
	}

	var thumb bytes.Buffer
	small := imaging.Fit(img, thumbSize, thumbSize, imaging.Lanczos)
	if err := imaging.Encode(&thumb, small, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return Processed{}, err
	}

	return Processed{
		Full:    full.Bytes(),
		Thumb:   thumb.Bytes(),
		TakenAt: takenAt(data),
	}, nil
}

func takenAt(data []byte) *time.Time {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	ts, err := meta.DateTime()
	if err != nil {
		return nil
	}
	return &ts
}
