package docgen

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"net/url"
	"path"
	"strings"

	"gcloud-docgen/internal/common/metrics"
	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageFetcher downloads remote images. Implementations bound the request
// time and body size.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Formats Word renders natively. Anything else decodable is re-encoded as
// PNG.
var nativeFormats = map[string]struct {
	ext         string
	contentType string
}{
	"png":  {"png", "image/png"},
	"jpeg": {"jpeg", "image/jpeg"},
	"gif":  {"gif", "image/gif"},
}

const placeholderURLLimit = 48

type imageEmbedder struct {
	doc       *docx.Document
	fetcher   ImageFetcher
	maxWidth  int64
	maxPixels int
}

// embed adds src as an inline picture run to p. The returned error is
// recoverable: the caller writes a text placeholder instead.
func (e *imageEmbedder) embed(ctx context.Context, p *etree.Element, src string) *RecoverableError {
	data, declared, source, err := e.load(ctx, src)
	if err != nil {
		return &RecoverableError{Stage: StageContentInserted, Kind: KindImageFetch, Subject: shortURL(src), Err: err}
	}

	ext, contentType, encoded, w, h, err := normalizeImage(data, e.maxPixels)
	if err != nil {
		if declared != "" {
			err = fmt.Errorf("%s: %w", declared, err)
		}
		return &RecoverableError{Stage: StageContentInserted, Kind: KindImageDecode, Subject: shortURL(src), Err: err}
	}

	relID, err := e.doc.AddMedia(ext, contentType, encoded)
	if err != nil {
		return &RecoverableError{Stage: StageContentInserted, Kind: KindImageDecode, Subject: shortURL(src), Err: err}
	}
	width, height := docx.FitWidth(w, h, e.maxWidth)
	if _, err := e.doc.AddInlineImage(p, docx.InlineImage{
		RelID:  relID,
		Name:   imageName(src, ext),
		Width:  width,
		Height: height,
	}); err != nil {
		return &RecoverableError{Stage: StageContentInserted, Kind: KindImageDecode, Subject: shortURL(src), Err: err}
	}

	metrics.DocgenImagesEmbedded.WithLabelValues(source).Inc()
	return nil
}

func (e *imageEmbedder) load(ctx context.Context, src string) ([]byte, string, string, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		data, contentType, err := decodeDataURL(src)
		return data, contentType, "data_url", err
	}
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", "remote", fmt.Errorf("unsupported image source")
	}
	if e.fetcher == nil {
		return nil, "", "remote", fmt.Errorf("remote images are disabled")
	}
	data, contentType, err := e.fetcher.Fetch(ctx, src)
	return data, contentType, "remote", err
}

// decodeDataURL parses "data:[<mediatype>][;base64],<data>".
func decodeDataURL(src string) ([]byte, string, error) {
	comma := strings.IndexByte(src, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	meta := src[len("data:"):comma]
	payload := src[comma+1:]

	isBase64 := false
	contentType := meta
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		isBase64 = true
		contentType = meta[:len(meta)-len(";base64")]
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}

	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return nil, contentType, fmt.Errorf("decode data URL: %w", err)
		}
		return []byte(data), contentType, nil
	}

	payload = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, contentType, fmt.Errorf("decode data URL: %w", err)
	}
	return data, contentType, nil
}

// normalizeImage returns the media extension, content type, bytes and
// pixel size of data. Images that need re-encoding are refused when their
// declared size exceeds maxPixels; zero disables the cap.
func normalizeImage(data []byte, maxPixels int) (string, string, []byte, int, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", "", nil, 0, 0, fmt.Errorf("image has no area")
	}
	if native, ok := nativeFormats[format]; ok {
		return native.ext, native.contentType, data, cfg.Width, cfg.Height, nil
	}

	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return "", "", nil, 0, 0, fmt.Errorf("%s image is %dx%d, over the %d pixel limit", format, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", "", nil, 0, 0, fmt.Errorf("decode %s: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", "", nil, 0, 0, fmt.Errorf("transcode %s: %w", format, err)
	}
	return "png", "image/png", buf.Bytes(), cfg.Width, cfg.Height, nil
}

func imageName(src, ext string) string {
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		return "image." + ext
	}
	if u, err := url.Parse(src); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return "image." + ext
}

// shortURL keeps data URLs readable in placeholders and logs.
func shortURL(src string) string {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(strings.ToLower(src), "data:") && len(src) > placeholderURLLimit {
		return src[:placeholderURLLimit] + "..."
	}
	return src
}

// imagePlaceholder is the text written when an image cannot be embedded.
func imagePlaceholder(src string) string {
	return "[image: " + shortURL(src) + "]"
}
