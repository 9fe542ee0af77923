package optimize

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadeforge/arcadeforge/internal/logging"
)

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestOptimize_ProducesAllVariants(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "hero.png")
	writePNG(t, src, 1600, 900)

	o := NewOptimizer(outDir, nil, logging.NewNop())
	result, err := o.Optimize(src)
	require.NoError(t, err)
	require.Len(t, result.Variants, 3)

	widths := map[string]int{"hero": 1280, "card": 640, "thumb": 320}
	for name, rel := range result.Variants {
		f, err := os.Open(filepath.Join(outDir, rel))
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, widths[name], cfg.Width, "variant %s", name)
	}
}

func TestOptimize_PreservesAspectRatio(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "wide.png")
	writePNG(t, src, 800, 400)

	o := NewOptimizer(outDir, []Variant{{Name: "half", Width: 400}}, logging.NewNop())
	result, err := o.Optimize(src)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(outDir, result.Variants["half"]))
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestOptimize_SmallImageNotUpscaled(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "tiny.png")
	writePNG(t, src, 100, 50)

	o := NewOptimizer(outDir, nil, logging.NewNop())
	result, err := o.Optimize(src)
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(outDir, result.Variants["hero"]))
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
}

func TestOptimize_ContentAddressedNamesStable(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "hero.png")
	writePNG(t, src, 640, 480)

	o := NewOptimizer(outDir, nil, logging.NewNop())
	first, err := o.Optimize(src)
	require.NoError(t, err)
	second, err := o.Optimize(src)
	require.NoError(t, err)

	assert.Equal(t, first.Variants, second.Variants)

	// Renaming the source does not change the output names.
	renamed := filepath.Join(srcDir, "other.png")
	require.NoError(t, os.Rename(src, renamed))
	third, err := o.Optimize(renamed)
	require.NoError(t, err)
	assert.Equal(t, first.Variants, third.Variants)
}

func TestOptimize_PassthroughFormats(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`)
	src := filepath.Join(srcDir, "logo.svg")
	require.NoError(t, os.WriteFile(src, svg, 0o644))

	o := NewOptimizer(outDir, nil, logging.NewNop())
	result, err := o.Optimize(src)
	require.NoError(t, err)

	// All variants share the single copied file.
	rel := result.Variants["hero"]
	assert.Equal(t, rel, result.Variants["card"])
	assert.Equal(t, rel, result.Variants["thumb"])

	copied, err := os.ReadFile(filepath.Join(outDir, rel))
	require.NoError(t, err)
	assert.Equal(t, svg, copied)
}

func TestVariantPaths_MatchOptimizeOutputs(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "hero.png")
	writePNG(t, src, 640, 480)

	o := NewOptimizer(outDir, nil, logging.NewNop())
	predicted, err := o.VariantPaths(src)
	require.NoError(t, err)

	result, err := o.Optimize(src)
	require.NoError(t, err)
	assert.Equal(t, predicted, result.Variants)
}

func TestOptimize_MissingSource(t *testing.T) {
	o := NewOptimizer(t.TempDir(), nil, logging.NewNop())
	_, err := o.Optimize(filepath.Join(t.TempDir(), "absent.png"))
	assert.Error(t, err)
}

func TestOptimize_CorruptImage(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "bad.png")
	require.NoError(t, os.WriteFile(src, []byte("not a png"), 0o644))

	o := NewOptimizer(t.TempDir(), nil, logging.NewNop())
	_, err := o.Optimize(src)
	assert.Error(t, err)
}

func TestOptimize_NoTempFilesLeftBehind(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	src := filepath.Join(srcDir, "hero.png")
	writePNG(t, src, 640, 480)

	o := NewOptimizer(outDir, nil, logging.NewNop())
	_, err := o.Optimize(src)
	require.NoError(t, err)

	var leftovers []string
	require.NoError(t, filepath.WalkDir(outDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Base(path)[0] == '.' {
			leftovers = append(leftovers, path)
		}
		return nil
	}))
	assert.Empty(t, leftovers)
}
