package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DefaultImageMIME is assumed for attachments that do not declare a type.
const DefaultImageMIME = "image/jpeg"

// Image is an inline binary attachment.
type Image struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"-"`
}

// ImageFromDataURL decodes either a data URL or a bare base64 string.
func ImageFromDataURL(value string) (Image, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Image{}, errors.New("image data is empty")
	}

	mime := DefaultImageMIME
	encoded := value
	if strings.HasPrefix(value, "data:") {
		header, body, ok := strings.Cut(value, ",")
		if !ok {
			return Image{}, errors.New("image data URL has no payload")
		}
		encoded = body
		meta := strings.TrimPrefix(header, "data:")
		meta, _, _ = strings.Cut(meta, ";")
		if meta != "" {
			mime = meta
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Image{}, fmt.Errorf("image data is not valid base64: %w", err)
	}
	if len(data) == 0 {
		return Image{}, errors.New("image data is empty")
	}
	return Image{MIMEType: mime, Data: data}, nil
}

// Base64 returns the attachment encoded for inline transport.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// RequestPayload is one outbound request. Build it with NewRequestPayload and
// treat it as read-only.
type RequestPayload struct {
	kind   InstructionKind
	text   string
	images []Image
}

// NewRequestPayload copies images so later changes to the caller's slice do
// not leak into an in-flight request. maxImages <= 0 disables the bound.
func NewRequestPayload(kind InstructionKind, text string, images []Image, maxImages int) (RequestPayload, error) {
	if !kind.Valid() {
		return RequestPayload{}, fmt.Errorf("unknown instruction kind %q", kind)
	}
	if maxImages > 0 && len(images) > maxImages {
		return RequestPayload{}, fmt.Errorf("too many images: %d (max %d)", len(images), maxImages)
	}

	copied := make([]Image, len(images))
	for i, img := range images {
		copied[i] = Image{MIMEType: img.MIMEType, Data: append([]byte(nil), img.Data...)}
		if copied[i].MIMEType == "" {
			copied[i].MIMEType = DefaultImageMIME
		}
	}
	return RequestPayload{kind: kind, text: text, images: copied}, nil
}

func (p RequestPayload) Kind() InstructionKind { return p.kind }

func (p RequestPayload) Text() string { return p.text }

// Images returns a copy of the attachments in order.
func (p RequestPayload) Images() []Image {
	return append([]Image(nil), p.images...)
}

func (p RequestPayload) ImageCount() int { return len(p.images) }
