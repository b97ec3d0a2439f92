package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"metargb/media-service/internal/service"
)

// DefaultSize is used when a request names no size
const DefaultSize = "thumbnail"

// ResolveRequest carries a raw image field value
type ResolveRequest struct {
	Field any `json:"field"`
}

// RenderImageRequest asks for <img> markup of field, or of def when
// field yields nothing
type RenderImageRequest struct {
	Field      any    `json:"field"`
	Size       string `json:"size" validate:"omitempty,image_size"`
	Default    any    `json:"default"`
	Attributes any    `json:"attributes"`
}

// ImageURLRequest asks for the sized URL of field or def
type ImageURLRequest struct {
	Field   any    `json:"field"`
	Size    string `json:"size" validate:"omitempty,image_size"`
	Default any    `json:"default"`
}

// ImportAttachmentRequest asks for a remote file to become an attachment
type ImportAttachmentRequest struct {
	URL      string `json:"url" validate:"required,remote_url"`
	ParentID uint64 `json:"parent_id"`
	Featured bool   `json:"featured"`
}

func (r ImportAttachmentRequest) toService() service.ImportRequest {
	return service.ImportRequest{URL: r.URL, ParentID: r.ParentID, Featured: r.Featured}
}

// ImageResponse is the HTTP reply of the render endpoint
type ImageResponse struct {
	HTML string `json:"html"`
}

// URLResponse is the HTTP reply of the URL endpoint
type URLResponse struct {
	URL string `json:"url"`
}

// AttachmentIDResponse is the HTTP reply of the resolve and import endpoints
type AttachmentIDResponse struct {
	AttachmentID uint64 `json:"attachment_id"`
}

func sizeOrDefault(size string) string {
	if size == "" {
		return DefaultSize
	}
	return size
}

// decodeJSON decodes one JSON object into dst keeping numbers exact
func decodeJSON(r io.Reader, dst any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// decodeStruct maps a protobuf Struct onto a request struct
func decodeStruct(s *structpb.Struct, dst any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return decodeJSON(bytes.NewReader(data), dst)
}
