package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/janhq/jan-chat-sync/internal/utils/idgen"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = validate.RegisterValidation("serverid", func(fl validator.FieldLevel) bool {
			return IsServerID(fl.Field().String())
		})
	})
	return validate
}

// IsServerID reports whether id can be sent to the backend as a real identifier.
// Provisional identifiers never leave the client.
func IsServerID(id string) bool {
	trimmed := strings.TrimSpace(id)
	return trimmed != "" && !idgen.IsProvisional(trimmed)
}

// ValidateRequest checks a gateway request payload before it is sent.
func ValidateRequest(ctx context.Context, req any) error {
	if err := requestValidator().StructCtx(ctx, req); err != nil {
		fields := map[string]any{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
		}
		return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"invalid request payload", err, "5a0f3c52-1d7e-4b8e-9f3a-6c2d1e0b7a41", fields)
	}
	return nil
}

// ValidateServerID rejects empty and provisional identifiers used in request paths.
func ValidateServerID(ctx context.Context, kind, id string) error {
	if !IsServerID(id) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("%s id %q is not a server identifier", kind, id), nil, "8e7d6c5b-4a39-4281-b0c1-d2e3f4a5b6c7")
	}
	return nil
}

// ValidateContent rejects empty message content.
func ValidateContent(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"message content cannot be empty", nil, "0c9b8a7f-6e5d-4c3b-a291-807f6e5d4c3b")
	}
	return nil
}

// ValidateAge rejects age contexts outside the supported range.
func ValidateAge(ctx context.Context, age int) error {
	if !ValidAgeContext(age) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("age context must be between %d and %d", MinAgeContext, MaxAgeContext), nil, "3f2e1d0c-9b8a-4765-a4b3-c2d1e0f9a8b7")
	}
	return nil
}
