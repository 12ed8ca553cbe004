package ocr

import (
	"bufio"
	"bytes"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	denoiseSigma = 0.6
	// Gaussian window comparable to a 31px adaptive threshold block.
	localMeanSigma = 5.0
	// Pixels darker than the local mean by more than this become ink.
	thresholdOffset = 10
)

// decodeImage decodes a JPEG or PNG upload, applying its EXIF orientation.
func decodeImage(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// binarize converts img to black ink on a white page using a Gaussian
// adaptive threshold over a lightly denoised grayscale copy.
func binarize(img image.Image) *image.Gray {
	smooth := imaging.Blur(imaging.Grayscale(img), denoiseSigma)
	mean := imaging.Blur(smooth, localMeanSigma)

	b := smooth.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := smooth.Pix[y*smooth.Stride:]
		ref := mean.Pix[y*mean.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if int(row[x*4]) > int(ref[x*4])-thresholdOffset {
				out.Pix[y*out.Stride+x] = 0xff
			}
		}
	}
	return out
}

// rotateUpright applies the clockwise rotation reported by tesseract OSD.
func rotateUpright(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	return img
}

// parseRotation reads the "Rotate:" line of tesseract --psm 0 output.
func parseRotation(out []byte) int {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Rotate" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
