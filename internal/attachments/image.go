// Package attachments validates, previews and uploads chat image attachments.
package attachments

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

const (
	MaxImageBytes = 10 * 1024 * 1024
	previewEdge   = 256
)

var (
	ErrNotImage = errors.New("Please select an image file")
	ErrTooLarge = errors.New("Please select an image smaller than 10MB")
)

// Image is an attachment picked by the user.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

func (img Image) Size() int {
	return len(img.Data)
}

func Validate(img Image) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(img.ContentType)), "image/") {
		return ErrNotImage
	}
	if img.Size() > MaxImageBytes {
		return ErrTooLarge
	}
	return nil
}

// DataURL inlines the raw image.
func DataURL(img Image) string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Preview returns a small JPEG data URL for display. Formats the decoder
// does not know fall back to the raw data URL.
func Preview(img Image) string {
	decoded, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return DataURL(img)
	}
	thumb := imaging.Fit(decoded, previewEdge, previewEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return DataURL(img)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// ObjectKey names an upload {userID}/{unixMillis}.{ext}, where ext is the
// text after the file name's last dot.
func ObjectKey(userID, fileName string, now time.Time) string {
	ext := fileName
	if i := strings.LastIndex(fileName, "."); i >= 0 {
		ext = fileName[i+1:]
	}
	return fmt.Sprintf("%s/%d.%s", userID, now.UnixMilli(), ext)
}
