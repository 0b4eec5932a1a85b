package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"regexp"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// MinPhotoScale is the lower bound of the interactive zoom factor. There is
// no upper bound.
const MinPhotoScale = 0.1

// Certificate describes one full redraw of the certificate canvas: optional
// attendee photo under the frame, the frame template over it, and the display
// name as centered text at a fixed coordinate.
type Certificate struct {
	Width  int
	Height int

	Template image.Image // drawn over the photo, stretched to the canvas
	Name     string
	FontFace font.Face
	// NameOffsetY is measured up from the bottom edge of the canvas.
	NameOffsetY int

	Photo      image.Image // optional
	PhotoX     float64     // photo center
	PhotoY     float64
	PhotoScale float64
}

// ClampPhotoScale bounds a requested zoom factor.
func ClampPhotoScale(s float64) float64 {
	if s < MinPhotoScale {
		return MinPhotoScale
	}
	return s
}

// Compose clears and redraws the whole canvas from scratch, then encodes it
// as PNG. There is no incremental drawing; every parameter change is a full
// redraw.
func (c Certificate) Compose() ([]byte, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", c.Width, c.Height)
	}

	dc := gg.NewContext(c.Width, c.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	if c.Photo != nil {
		scale := ClampPhotoScale(c.PhotoScale)
		dc.Push()
		dc.ScaleAbout(scale, scale, c.PhotoX, c.PhotoY)
		dc.DrawImageAnchored(c.Photo, int(c.PhotoX), int(c.PhotoY), 0.5, 0.5)
		dc.Pop()
	}

	if c.Template != nil {
		tb := c.Template.Bounds()
		if tb.Dx() > 0 && tb.Dy() > 0 {
			dc.Push()
			dc.Scale(float64(c.Width)/float64(tb.Dx()), float64(c.Height)/float64(tb.Dy()))
			dc.DrawImage(c.Template, 0, 0)
			dc.Pop()
		}
	}

	if c.Name != "" {
		face := c.FontFace
		if face == nil {
			face = basicfont.Face7x13
		}
		dc.SetFontFace(face)
		dc.SetRGB255(0x33, 0x33, 0x33)
		dc.DrawStringAnchored(c.Name, float64(c.Width)/2, float64(c.Height-c.NameOffsetY), 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadCertificateFont parses a TTF file into a face at the given size.
// An empty path yields the built-in bitmap face so the compositor keeps
// working without font assets.
func LoadCertificateFont(path string, size float64) (font.Face, error) {
	if path == "" {
		return basicfont.Face7x13, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := truetype.Parse(b)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// LoadTemplateImage decodes the frame template (PNG or JPEG).
func LoadTemplateImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

var fileNameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// CertificateFileName derives the download filename from the user's display
// name: whitespace collapses to dashes, anything path-hostile is dropped.
func CertificateFileName(name string) string {
	dashed := strings.Join(strings.Fields(name), "-")
	safe := fileNameUnsafe.ReplaceAllString(dashed, "")
	if safe == "" {
		safe = "certificate"
	}
	return "certificate-" + safe + ".png"
}

// ShareFileName names a published certificate by its content hash so repeated
// shares of identical renders collapse to one object.
func ShareFileName(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + ".png"
}
