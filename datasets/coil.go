package datasets

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"github.com/stat-ml/ncvis/pool"
	"github.com/stat-ml/ncvis/source"
)

var coilPattern = regexp.MustCompile(`^obj(\d+)__(\d+)\.png$`)

// Sample is one decoded image.
type Sample struct {
	Name   string
	Pixels []float64 // row-major, channels interleaved
	Label  int
	Shape  []int // height, width and, for color images, channels
}

// CoilLoader decodes COIL-20/COIL-100 style images named objN__M.png. The
// label is N-1. Files with other names are skipped.
type CoilLoader struct {
	dir string
}

// NewCoilLoader returns a loader reading files from dir.
func NewCoilLoader(dir string) *CoilLoader {
	return &CoilLoader{dir: dir}
}

// CoilFactory builds one CoilLoader per worker.
func CoilFactory(dir string) pool.WorkerFactory[string, Sample] {
	return func() (pool.Worker[string, Sample], error) {
		return NewCoilLoader(dir), nil
	}
}

func (l *CoilLoader) Process(ctx context.Context, name string) pool.Outcome[Sample] {
	m := coilPattern.FindStringSubmatch(name)
	if m == nil {
		return pool.Skip[Sample]()
	}
	if err := ctx.Err(); err != nil {
		return pool.Fail[Sample](err)
	}

	obj, err := strconv.Atoi(m[1])
	if err != nil {
		return pool.Fail[Sample](fmt.Errorf("%s: object id: %w", name, err))
	}

	img, err := decodePNG(filepath.Join(l.dir, name))
	if err != nil {
		return pool.Fail[Sample](err)
	}

	pixels, shape := flatten(img)
	return pool.Success(Sample{Name: name, Pixels: pixels, Label: obj - 1, Shape: shape})
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// flatten returns the pixels of img in row-major order. Grayscale images
// give one value per pixel, anything else three (RGB, 8 bit).
func flatten(img image.Image) ([]float64, []int) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	if gray, ok := img.(*image.Gray); ok {
		out := make([]float64, 0, h*w)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := gray.Pix[gray.PixOffset(b.Min.X, y):]
			for x := range w {
				out = append(out, float64(row[x]))
			}
		}
		return out, []int{h, w}
	}

	out := make([]float64, 0, h*w*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, float64(r>>8), float64(g>>8), float64(bl>>8))
		}
	}
	return out, []int{h, w, 3}
}

// LoadCoil decodes every objN__M.png file directly inside dir through a
// pool. Samples are ordered by file name. When some files fail, the dataset
// holds the rest and the error lists the failures.
func LoadCoil(ctx context.Context, dir string, opts ...pool.Option) (*Dataset, error) {
	files, err := source.Dir(dir)
	if err != nil {
		return nil, err
	}

	p := pool.New[string, Sample](opts...)
	report, runErr := p.Execute(ctx, files, CoilFactory(dir))
	if report == nil {
		return nil, runErr
	}

	ds := &Dataset{Names: make(map[int]string)}
	for _, res := range report.Sorted() {
		s := res.Value
		if ds.Shape == nil {
			ds.Shape = s.Shape
		} else if !slices.Equal(ds.Shape, s.Shape) {
			return nil, fmt.Errorf("%w: %s is %v, expected %v", ErrShapeMismatch, s.Name, s.Shape, ds.Shape)
		}

		ds.X = append(ds.X, s.Pixels)
		ds.Y = append(ds.Y, s.Label)
		ds.Names[s.Label] = "obj" + strconv.Itoa(s.Label+1)
	}
	return ds, runErr
}
