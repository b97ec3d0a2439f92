package handler

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"metargb/media-service/internal/service"
	"metargb/media-service/pkg/validation"
)

type MediaHandler struct {
	service   *service.MediaService
	validator *validation.Validator
}

func RegisterMediaHandler(grpcServer *grpc.Server, svc *service.MediaService) {
	handler := NewMediaHandler(svc)
	grpcServer.RegisterService(&MediaServiceDesc, handler)
}

func NewMediaHandler(svc *service.MediaService) *MediaHandler {
	return &MediaHandler{service: svc, validator: validation.New()}
}

// ResolveAttachmentID resolves a raw image field value
func (h *MediaHandler) ResolveAttachmentID(ctx context.Context, req *structpb.Value) (*wrapperspb.UInt64Value, error) {
	id, err := h.service.ResolveAttachmentID(ctx, req.AsInterface())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to resolve attachment: %v", err)
	}
	return wrapperspb.UInt64(id), nil
}

// RenderImage renders <img> markup
func (h *MediaHandler) RenderImage(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	var in RenderImageRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}

	markup, err := h.service.Image(ctx, in.Field, sizeOrDefault(in.Size), in.Default, service.ParseAttributes(in.Attributes))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to render image: %v", err)
	}
	return wrapperspb.String(markup), nil
}

// GetImageURL returns a sized image URL
func (h *MediaHandler) GetImageURL(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	var in ImageURLRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}

	url, err := h.service.ImageURL(ctx, in.Field, sizeOrDefault(in.Size), in.Default)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to get image url: %v", err)
	}
	return wrapperspb.String(url), nil
}

// ImportAttachment imports a remote file as an attachment
func (h *MediaHandler) ImportAttachment(ctx context.Context, req *structpb.Struct) (*wrapperspb.UInt64Value, error) {
	var in ImportAttachmentRequest
	if err := h.decode(req, &in); err != nil {
		return nil, err
	}

	id, err := h.service.ImportAttachment(ctx, in.toService())
	if err != nil {
		if id > 0 {
			// the attachment exists even though the call failed
			grpc.SetTrailer(ctx, metadata.Pairs(AttachmentIDTrailer, strconv.FormatUint(id, 10)))
		}
		return nil, importStatus(id, err)
	}
	return wrapperspb.UInt64(id), nil
}

func (h *MediaHandler) decode(req *structpb.Struct, dst any) error {
	if err := decodeStruct(req, dst); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := h.validator.Validate(dst); err != nil {
		return status.Error(codes.InvalidArgument, validation.EncodeValidationError(validation.FieldErrors(err)))
	}
	return nil
}

// AttachmentIDTrailer carries the ID of an attachment created by a
// failed import
const AttachmentIDTrailer = "attachment-id"

// importStatus maps import failures onto gRPC codes
func importStatus(id uint64, err error) error {
	switch {
	case errors.Is(err, service.ErrFeatured):
		return status.Errorf(codes.Internal, "attachment %d imported but featured image not set: %v", id, err)
	case errors.Is(err, service.ErrDownload):
		return status.Errorf(codes.Unavailable, "failed to download: %v", err)
	case errors.Is(err, service.ErrFileType):
		return status.Errorf(codes.FailedPrecondition, "file rejected: %v", err)
	default:
		return status.Errorf(codes.Internal, "failed to import attachment: %v", err)
	}
}
