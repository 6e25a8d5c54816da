package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"receiptsync/internal"
)

// Document is one attached receipt candidate from an email.
type Document struct {
	Name string
	Kind internal.ReceiptFormat
	Blob []byte
}

// EmailContent is the decoded MIME envelope of one stored message.
type EmailContent struct {
	Subject   string
	From      string
	Text      string
	HTML      string
	Documents []Document
}

// ReadEmailRaw parses a raw RFC 5322 message. Attachments that are not
// receipt material (calendar invites, signatures) are dropped here.
func ReadEmailRaw(raw []byte) (*EmailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	content := &EmailContent{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	for _, att := range append(env.Attachments, env.Inlines...) {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		kind, ok := classifyAttachment(name, att.ContentType)
		if !ok {
			continue
		}
		content.Documents = append(content.Documents, Document{Name: name, Kind: kind, Blob: att.Content})
	}

	return content, nil
}

func classifyAttachment(name, contentType string) (internal.ReceiptFormat, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	ct := strings.ToLower(contentType)
	switch {
	case ext == ".pdf" || ct == "application/pdf":
		return internal.FormatPDF, true
	case ext == ".png" || ext == ".jpg" || ext == ".jpeg" || ext == ".gif" ||
		ext == ".tif" || ext == ".tiff" || ext == ".bmp" || strings.HasPrefix(ct, "image/"):
		return internal.FormatImage, true
	case ext == ".html" || ext == ".htm":
		return internal.FormatHTML, true
	case ext == ".txt":
		return internal.FormatText, true
	default:
		return "", false
	}
}
