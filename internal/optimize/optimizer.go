// Package optimize produces the resized image variants the page templates
// reference. Raster sources (png, jpeg, gif) are decoded, scaled with
// Catmull-Rom interpolation, and re-encoded deterministically; formats the
// standard codecs cannot re-encode (webp, svg, ico) are copied through
// unchanged. Output names are content-addressed so rebuilds of unchanged
// images are free and cache-busting needs no query strings.
package optimize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/arcadeforge/arcadeforge/internal/errors"
	"github.com/arcadeforge/arcadeforge/internal/logging"
)

// Variant names one resized rendition of a source image.
type Variant struct {
	Name  string
	Width int
}

// DefaultVariants are the renditions the game page templates use.
var DefaultVariants = []Variant{
	{Name: "hero", Width: 1280},
	{Name: "card", Width: 640},
	{Name: "thumb", Width: 320},
}

const jpegQuality = 85

// Result maps variant names to output paths relative to the output root.
type Result struct {
	Source   string
	Variants map[string]string
	Bytes    int64 // bytes actually written; zero when all variants already existed
}

// Optimizer writes image variants under <outputRoot>/assets/images.
type Optimizer struct {
	outputRoot string
	variants   []Variant
	log        logging.Logger
}

// NewOptimizer creates an optimizer writing under outputRoot.
func NewOptimizer(outputRoot string, variants []Variant, log logging.Logger) *Optimizer {
	if len(variants) == 0 {
		variants = DefaultVariants
	}
	return &Optimizer{
		outputRoot: outputRoot,
		variants:   variants,
		log:        log.WithComponent("optimize"),
	}
}

// VariantPaths predicts the output-relative paths Optimize will produce
// for source without writing anything. The planner uses this so page
// templates can reference image renditions while the image units are
// still queued.
func (o *Optimizer) VariantPaths(sourcePath string) (map[string]string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeOptimizeFailure, "reading source image", err)
	}

	ext := strings.ToLower(filepath.Ext(sourcePath))
	digest := contentDigest(data)

	paths := make(map[string]string, len(o.variants))
	for _, v := range o.variants {
		if resizable(ext) {
			paths[v.Name] = filepath.Join("assets", "images", fmt.Sprintf("%s-%s%s", digest, v.Name, ext))
		} else {
			paths[v.Name] = filepath.Join("assets", "images", digest+ext)
		}
	}

	return paths, nil
}

// Optimize produces all variants for one source image. The returned paths
// are relative to the output root and stable across rebuilds of identical
// content.
func (o *Optimizer) Optimize(sourcePath string) (*Result, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeOptimizeFailure, "reading source image", err)
	}

	ext := strings.ToLower(filepath.Ext(sourcePath))
	digest := contentDigest(data)

	result := &Result{
		Source:   sourcePath,
		Variants: make(map[string]string, len(o.variants)),
	}

	if !resizable(ext) {
		// Single passthrough rendition shared by all variants.
		rel := filepath.Join("assets", "images", digest+ext)
		written, err := o.writeAtomic(rel, data)
		if err != nil {
			return nil, err
		}
		result.Bytes += written
		for _, v := range o.variants {
			result.Variants[v.Name] = rel
		}
		return result, nil
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewBuildError(errors.ErrCodeOptimizeFailure, "decoding "+sourcePath, err)
	}

	for _, v := range o.variants {
		encoded, err := encodeScaled(src, format, v.Width)
		if err != nil {
			return nil, errors.NewBuildError(errors.ErrCodeOptimizeFailure,
				fmt.Sprintf("encoding %s variant of %s", v.Name, sourcePath), err)
		}
		rel := filepath.Join("assets", "images", fmt.Sprintf("%s-%s%s", digest, v.Name, ext))
		written, err := o.writeAtomic(rel, encoded)
		if err != nil {
			return nil, err
		}
		result.Bytes += written
		result.Variants[v.Name] = rel
	}

	return result, nil
}

// writeAtomic writes via a temp file and rename so a crashed build never
// leaves a truncated image in the output tree. Existing files are skipped;
// content-addressed names make overwrites pointless.
func (o *Optimizer) writeAtomic(rel string, data []byte) (int64, error) {
	dest := filepath.Join(o.outputRoot, rel)
	if _, err := os.Stat(dest); err == nil {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, errors.NewIOError(errors.ErrCodeOptimizeFailure, "creating image output directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".img-*")
	if err != nil {
		return 0, errors.NewIOError(errors.ErrCodeOptimizeFailure, "creating temp image file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return 0, errors.NewIOError(errors.ErrCodeOptimizeFailure, "writing image variant", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, errors.NewIOError(errors.ErrCodeOptimizeFailure, "closing image variant", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return 0, errors.NewIOError(errors.ErrCodeOptimizeFailure, "publishing image variant", err)
	}

	return int64(len(data)), nil
}

// encodeScaled scales src down to the target width and re-encodes it in
// its original format. Images already narrower than the target are
// re-encoded without scaling so every variant path exists.
func encodeScaled(src image.Image, format string, width int) ([]byte, error) {
	bounds := src.Bounds()
	scaled := src

	if bounds.Dx() > width {
		height := bounds.Dy() * width / bounds.Dx()
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		scaled = dst
	}

	var buf bytes.Buffer

	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(&buf, scaled, nil); err != nil {
			return nil, err
		}
	default:
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		if err := encoder.Encode(&buf, scaled); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func resizable(ext string) bool {
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif":
		return true
	default:
		return false
	}
}

func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
