package metadata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Size is a registered intermediate image size; 0 means unbounded
type Size struct {
	Name   string
	Width  int
	Height int
	Crop   bool
}

// ParseSizes parses "name:WxH[:crop],..." into sizes
func ParseSizes(list string) ([]Size, error) {
	var sizes []Size
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid image size %q", item)
		}

		w, h, err := ParseDimensions(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid image size %q: %w", item, err)
		}
		if w == 0 && h == 0 {
			return nil, fmt.Errorf("invalid image size %q: both dimensions unbounded", item)
		}

		size := Size{Name: parts[0], Width: w, Height: h}
		if len(parts) == 3 {
			if parts[2] != "crop" {
				return nil, fmt.Errorf("invalid image size %q: unknown flag %q", item, parts[2])
			}
			size.Crop = true
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

// ParseDimensions parses "WxH"
func ParseDimensions(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("dimensions %q are not WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w < 0 {
		return 0, 0, fmt.Errorf("invalid width %q", ws)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 {
		return 0, 0, fmt.Errorf("invalid height %q", hs)
	}
	return w, h, nil
}

// Constrain scales w x h down to fit inside maxW x maxH keeping aspect ratio
func Constrain(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}

	ratio := 1.0
	if maxW > 0 && w > maxW {
		ratio = float64(maxW) / float64(w)
	}
	if maxH > 0 && h > maxH {
		ratio = math.Min(ratio, float64(maxH)/float64(h))
	}

	nw := int(math.Max(1, math.Round(float64(w)*ratio)))
	nh := int(math.Max(1, math.Round(float64(h)*ratio)))
	return nw, nh
}

// ResizeDimensions returns the output dimensions of size for an origW x origH
// source, false when the size would not shrink the source
func ResizeDimensions(origW, origH int, size Size) (int, int, bool) {
	if origW <= 0 || origH <= 0 {
		return 0, 0, false
	}

	var w, h int
	if size.Crop && size.Width > 0 && size.Height > 0 {
		w = min(size.Width, origW)
		h = min(size.Height, origH)
	} else {
		w, h = Constrain(origW, origH, size.Width, size.Height)
	}

	if w >= origW && h >= origH {
		return 0, 0, false
	}
	return w, h, true
}
