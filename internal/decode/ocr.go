package decode

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"receiptsync/internal"
	"receiptsync/internal/util"
)

// OCREngine wraps a tesseract client. The client is acquired lazily on the
// first Recognize call, reused across documents, and released by Close at
// shutdown.
type OCREngine struct {
	mu       sync.Mutex
	language string
	client   *gosseract.Client
}

func NewOCREngine(language string) *OCREngine {
	if language == "" {
		language = "eng"
	}
	return &OCREngine{language: language}
}

// Recognize runs OCR over an image attachment. Empty or low-confidence
// output is a valid, non-fatal result: the caller sees an artifact with no
// usable text, not an error.
func (e *OCREngine) Recognize(blob []byte) (*Artifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		client := gosseract.NewClient()
		if err := client.SetLanguage(e.language); err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		e.client = client
	}

	if err := e.client.SetImageFromBytes(preprocess(blob)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	confidence := 0.0
	if boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil && len(boxes) > 0 {
		sum := 0.0
		for _, box := range boxes {
			sum += box.Confidence
		}
		confidence = sum / float64(len(boxes)) / 100
	}

	return &Artifact{
		Source:        internal.FormatImage,
		Text:          text,
		Dates:         util.FindDates(text),
		OCRConfidence: confidence,
	}, nil
}

// Close releases the tesseract handle. Safe to call without a prior
// Recognize and safe to call twice.
func (e *OCREngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		_ = e.client.Close()
		e.client = nil
	}
}

// preprocess applies light cleanup before recognition: grayscale, a contrast
// bump and sharpening. Falls back to the raw bytes when the image cannot be
// decoded, letting tesseract report the real failure.
func preprocess(blob []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(blob))
	if err != nil {
		return blob
	}
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 15)
	out = imaging.Sharpen(out, 0.7)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return blob
	}
	return buf.Bytes()
}
