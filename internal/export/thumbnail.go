package export

import (
	"fmt"

	"github.com/h2non/bimg"
)

// DefaultThumbnailWidth is the target width for export thumbnails. Height
// follows the source aspect ratio.
const DefaultThumbnailWidth = 320

// Thumbnail downscales a rendered PNG to a small preview. The source aspect
// ratio is preserved.
func Thumbnail(png []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultThumbnailWidth
	}

	size, err := bimg.NewImage(png).Size()
	if err != nil {
		return nil, fmt.Errorf("read image size: %w", err)
	}
	if size.Width <= width {
		return png, nil
	}

	height := size.Height * width / size.Width
	out, err := bimg.NewImage(png).Process(bimg.Options{
		Width:  width,
		Height: height,
		Type:   bimg.PNG,
	})
	if err != nil {
		return nil, fmt.Errorf("resize thumbnail: %w", err)
	}
	return out, nil
}
