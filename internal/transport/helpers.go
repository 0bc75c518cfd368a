package transport

import (
	"errors"
	"io"
	"net/http"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/gorilla/schema"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

// фильтры списка клиентов приходят как query, незнакомые ключи игнорируем
var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func errorCodeDefiner(err error) int {
	var se *model.SubmissionError
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrPayloadTooLarge):
		return 413
	case errors.Is(err, model.ErrUnauthorized):
		return 401
	case errors.Is(err, model.ErrCaptureUnavailable):
		return 503
	case errors.Is(err, model.ErrDecodeTimeout):
		return 504
	case errors.Is(err, model.ErrEmptyInput),
		errors.Is(err, model.ErrInvalidCPF):
		return 422
	case errors.Is(err, model.ErrCameraInactive),
		errors.Is(err, model.ErrNoPendingCapture):
		return 409
	case errors.Is(err, model.ErrFormNotFound),
		errors.Is(err, model.ErrCustomerNotFound),
		errors.Is(err, model.ErrSubmissionNotFound):
		return 404
	case errors.Is(err, model.ErrIncorrectQuery),
		errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrIncorrectBody),
		errors.Is(err, model.ErrInvalidStroke),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrMalformedDataURL),
		errors.Is(err, model.ErrWeakCredentials):
		return 400
	case errors.As(err, &se):
		// 4xx внешнего API отдаем как есть с его сообщением, остальное - 502
		if se.Status >= 400 && se.Status < 500 {
			return 400
		}
		return 502
	case errors.Is(err, model.ErrUpstream):
		return 502
	default:
		return 500
	}
}

func respondError(ctx *ginext.Context, err error) {
	ctx.JSON(errorCodeDefiner(err), map[string]string{"error": err.Error()})
}

func streamFile(ctx *ginext.Context, res io.ReadCloser, cType, name string) {
	defer closeFileFlow(res)

	ctx.Writer.Header().Set("Content-Type", cType)
	ctx.Writer.WriteHeader(http.StatusOK)
	if n, err := io.Copy(ctx.Writer, res); err != nil {
		zlog.Logger.Error().Err(err).Int64("written", n).Str("file", name).Msg("Failed to write response")
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Handler failed to close fileflow")
	}
}
