// Package preprocess turns decoded images into normalized ImageNet input tensors.
package preprocess

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

const (
	Size     = 224
	Channels = 3
)

var (
	Mean = [Channels]float32{0.485, 0.456, 0.406}
	Std  = [Channels]float32{0.229, 0.224, 0.225}
)

var ErrEmptyImage = errors.New("image is empty")

// TensorLen is the number of values Tensor produces.
const TensorLen = Channels * Size * Size

// Tensor center-crops img to a square, resizes it to Size x Size and
// returns the normalized pixels in CHW order. Cropping first keeps memory
// bounded by the source image no matter how extreme the aspect ratio is.
func Tensor(img image.Image) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	square := resizeSquare(centerSquare(img), Size)
	origin := square.Bounds().Min

	plane := Size * Size
	inputData := make([]float32, TensorLen)

	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			// un-premultiplied so translucent pixels keep their color
			c := color.NRGBA64Model.Convert(square.At(origin.X+x, origin.Y+y)).(color.NRGBA64)

			pixelIndex := y*Size + x
			inputData[pixelIndex] = normalize(c.R, 0)
			inputData[plane+pixelIndex] = normalize(c.G, 1)
			inputData[2*plane+pixelIndex] = normalize(c.B, 2)
		}
	}

	return inputData, nil
}

func normalize(v uint16, channel int) float32 {
	return (float32(v)/65535.0 - Mean[channel]) / Std[channel]
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// centerSquare returns the centered min(w,h) square of img.
func centerSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	r := image.Rect(x0, y0, x0+side, y0+side)
	if r == b {
		return img
	}

	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA64(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

func resizeSquare(img image.Image, size int) image.Image {
	if img.Bounds().Dx() == size && img.Bounds().Dy() == size {
		return img
	}
	return resize.Resize(uint(size), uint(size), img, resize.Bicubic)
}
