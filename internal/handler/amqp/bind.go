package amqp

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to the router, handling panic recovery and poison requests.
func Bind(h *RequestHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = fmt.Errorf("panic while handling message %s: %v", msg.UUID, r)
			}
		}()

		resp, err := h.router.PublishText(msg.Context(), msg.Payload)
		switch {
		case err == nil:
		case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrAuthorization):
			// ACK: a refused request never becomes valid on retry.
			h.logger.Warn("REQUEST_REFUSED", "err", err, "msg_id", msg.UUID)
			return nil
		default:
			return err // NACK: triggers the retry policy.
		}

		h.logger.Debug("REQUEST_ROUTED",
			"msg_id", msg.UUID,
			"recipients", resp.Recipients,
			"delivered", resp.Delivered,
		)
		return nil
	}
}
