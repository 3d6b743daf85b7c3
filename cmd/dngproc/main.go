// Command dngproc applies a serialized opcode stream to a raw sample dump
// and writes the corrected image as PNG or TIFF.
//
// The input is headerless big-endian 16-bit samples, planar, one plane after
// another; geometry comes from the -width, -height and -planes flags. The
// opcode stream uses the same serialized form carried in raw file metadata.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	dng "github.com/mrjoshuak/go-dng"
	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dngproc:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		width        = flag.Uint("width", 0, "image width in pixels (required)")
		height       = flag.Uint("height", 0, "image height in pixels (required)")
		planes       = flag.Uint("planes", 1, "sample planes per pixel (1 or 3)")
		opcodePath   = flag.String("opcodes", "", "serialized opcode stream (omit to pass samples through)")
		output       = flag.String("o", "out.png", "output file, format by extension (.png, .tif)")
		workers      = flag.Int("workers", 1, "tile worker goroutines")
		tileSize     = flag.Int("tile", 0, "maximum tile edge in pixels (0 for default)")
		preview      = flag.Bool("preview", false, "render as a preview pass")
		previewWidth = flag.Int("preview-width", 0, "downscale output to this width (preview passes)")
	)
	flag.Parse()

	if *width == 0 || *height == 0 {
		return fmt.Errorf("-width and -height are required")
	}
	if *width > 1<<31-1 || *height > 1<<31-1 {
		return fmt.Errorf("image %dx%d: %w", *width, *height, safemath.ErrOverflow)
	}
	if *planes != 1 && *planes != 3 {
		return fmt.Errorf("unsupported plane count %d", *planes)
	}
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: dngproc [flags] <raw-sample-file>")
	}

	img, err := loadRaw(flag.Arg(0), uint32(*width), uint32(*height), uint32(*planes))
	if err != nil {
		return err
	}

	list, err := loadOpcodes(*opcodePath)
	if err != nil {
		return err
	}

	opts := dng.DefaultOptions()
	opts.Workers = *workers
	opts.Preview = *preview
	if *tileSize > 0 {
		opts.MaxTileWidth = int32(*tileSize)
		opts.MaxTileHeight = int32(*tileSize)
	}

	// Ctrl-C cancels between tiles instead of killing the process mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := dng.Render(ctx, img, list, opts)
	if err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	result := toImage(out)
	if *previewWidth > 0 {
		result = imaging.Resize(result, *previewWidth, 0, imaging.Lanczos)
	}
	return writeImage(*output, result)
}

// loadRaw reads a headerless planar 16-bit big-endian sample dump. The
// decoded samples back the buffer directly; nothing is copied again.
func loadRaw(path string, width, height, planes uint32) (*pixel.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	count, err := safemath.Uint32Mult(width, height, planes)
	if err != nil {
		return nil, fmt.Errorf("image %dx%dx%d: %w", width, height, planes, err)
	}
	if uint64(len(data)) != uint64(count)*2 {
		return nil, fmt.Errorf("%s: %d bytes for %dx%dx%d 16-bit samples, want %d",
			path, len(data), width, height, planes, uint64(count)*2)
	}

	samples := make([]uint16, count)
	for i := range samples {
		samples[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}

	var w, h int32
	if !safemath.Uint32ToInt32(width, &w) || !safemath.Uint32ToInt32(height, &h) {
		return nil, fmt.Errorf("image %dx%d: %w", width, height, safemath.ErrOverflow)
	}
	return pixel.NewBufferWith(geom.NewRect(w, h), int(planes), pixel.Uint16, samples)
}

func loadOpcodes(path string) (*dng.OpcodeList, error) {
	if path == "" {
		return dng.DecodeOpcodeList([]byte{0, 0, 0, 0})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	list, err := dng.DecodeOpcodeList(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, name := range list.Skipped() {
		fmt.Fprintf(os.Stderr, "dngproc: skipping unknown optional opcode %s\n", name)
	}
	return list, nil
}

// toImage converts the rendered buffer to a 16-bit standard-library image.
func toImage(buf *pixel.Buffer) image.Image {
	bounds := buf.Bounds()
	w := int(bounds.Width())
	h := int(bounds.Height())

	if buf.Planes() >= 3 {
		out := image.NewRGBA64(image.Rect(0, 0, w, h))
		for row := bounds.Top; row < bounds.Bottom; row++ {
			for col := bounds.Left; col < bounds.Right; col++ {
				x := int(col - bounds.Left)
				y := int(row - bounds.Top)
				o := out.PixOffset(x, y)
				for p := 0; p < 3; p++ {
					v := uint16(buf.Sample(row, col, p))
					out.Pix[o+2*p] = uint8(v >> 8)
					out.Pix[o+2*p+1] = uint8(v)
				}
				out.Pix[o+6] = 0xFF
				out.Pix[o+7] = 0xFF
			}
		}
		return out
	}

	out := image.NewGray16(image.Rect(0, 0, w, h))
	for row := bounds.Top; row < bounds.Bottom; row++ {
		src := buf.RowUint16(row, 0)
		for col, v := range src {
			o := out.PixOffset(col, int(row-bounds.Top))
			out.Pix[o] = uint8(v >> 8)
			out.Pix[o+1] = uint8(v)
		}
	}
	return out
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case ".png":
		err = png.Encode(f, img)
	default:
		err = fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
