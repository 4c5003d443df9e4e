package validate

import (
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// DisplayUnit values.
const (
	displayUnitPixels = 0
	displayUnitDAR    = 3
)

// checkVideo verifies the dimensions, crop and aspect of a video TrackEntry.
func (s *Session) checkVideo(entry *ebml.Element, num uint64) {
	video := entry.FindFirst(schema.IDVideo)
	if video == nil {
		s.Sink.Warnf(0xE0, "Video track at %d is missing a Video element", entry.Offset)
		return
	}

	pw := video.FindFirst(schema.IDPixelWidth)
	if pw == nil {
		s.Sink.Errorf(0xE1, "Video track #%d at %d has no pixel width", num, entry.Offset)
	}
	ph := video.FindFirst(schema.IDPixelHeight)
	if ph == nil {
		s.Sink.Errorf(0xE2, "Video track #%d at %d has no pixel height", num, entry.Offset)
	}
	var pixW, pixH uint64
	if pw != nil {
		pixW = pw.Uint
	}
	if ph != nil {
		pixH = ph.Uint
	}

	dispW, dispH := pixW, pixH
	if dw := video.FindFirst(schema.IDDisplayWidth); dw != nil {
		dispW = dw.Uint
	}
	if dh := video.FindFirst(schema.IDDisplayHeight); dh != nil {
		dispH = dh.Uint
	}
	if dispH == 0 {
		s.Sink.Errorf(0xE7, "Video track #%d at %d has a null height", num, entry.Offset)
	}
	if dispW == 0 {
		s.Sink.Errorf(0xE7, "Video track #%d at %d has a null width", num, entry.Offset)
	}

	unit, _ := video.UintOr(schema.IDDisplayUnit, displayUnitPixels)
	if unit == displayUnitPixels && pw != nil && ph != nil && dispW < pixW && dispH < pixH {
		switch score := s.aspectScore(pixW, pixH, dispW, dispH); {
		case score > 2:
			s.Sink.Errorf(0xE3, "The output pixels for Video track #%d seem wrong %dx%dpx from %dx%d", num, dispW, dispH, pixW, pixH)
		case score > 0:
			s.Sink.Warnf(0xE3, "The output pixels for Video track #%d seem wrong %dx%dpx from %dx%d", num, dispW, dispH, pixW, pixH)
		}
	}

	if unit == displayUnitDAR {
		crops := []struct {
			id   uint32
			name string
		}{
			{schema.IDPixelCropTop, "top"},
			{schema.IDPixelCropBottom, "bottom"},
			{schema.IDPixelCropLeft, "left"},
			{schema.IDPixelCropRight, "right"},
		}
		for _, c := range crops {
			if el := video.FindFirst(c.id); el != nil {
				s.Sink.Errorf(0xE4, "Video track #%d is using unconstrained aspect ratio and has %s crop at %d", num, c.name, el.Offset)
			}
		}
		return
	}

	top, _ := video.UintOr(schema.IDPixelCropTop, 0)
	bottom, _ := video.UintOr(schema.IDPixelCropBottom, 0)
	if top+bottom >= dispH {
		s.Sink.Errorf(0xE5, "Video track #%d is cropping too many vertical pixels %d vs %d + %d", num, dispH, top, bottom)
	}
	left, _ := video.UintOr(schema.IDPixelCropLeft, 0)
	right, _ := video.UintOr(schema.IDPixelCropRight, 0)
	if left+right >= dispW {
		s.Sink.Errorf(0xE6, "Video track #%d is cropping too many horizontal pixels %d vs %d + %d", num, dispW, left, right)
	}
}

// aspectScore rates how likely display dimensions smaller than the pixel
// dimensions are an aspect ratio written in pixel units.
func (s *Session) aspectScore(pixW, pixH, dispW, dispH uint64) int {
	score := 0
	if gcd(dispW, dispH) == 1 {
		score++
	}
	if dispW*pixH == dispH*pixW {
		score++
	}
	if 8*dispW <= pixW && 8*dispH <= pixH {
		score += 2
	}
	if !s.Profile.IsWebM() {
		score--
	}
	return score
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
