package middleware

import (
	"errors"
	"strings"
	"time"

	"shoestore/internal/idempotency"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// IdempotencyHeader carries the client-chosen key.
	IdempotencyHeader = "Idempotency-Key"
	replayHeader      = "X-Idempotent-Replay"
)

// IdempotencyConfig configures the Idempotency middleware.
type IdempotencyConfig struct {
	Store  idempotency.Store
	TTL    time.Duration
	Logger *zap.Logger
	Clock  func() time.Time
}

// Idempotency replays the stored response when a request repeats a key it
// already completed. Requests without the header pass through. A key still in
// flight gets 409 and a key reused with a different body gets 422. Server
// errors release the key so the client can retry.
//
// The key is scoped to the authenticated user, so the middleware must run
// after AuthRequired.
func Idempotency(cfg IdempotencyConfig) fiber.Handler {
	if cfg.Store == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return func(c *fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(IdempotencyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > 255 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation_error",
				"message": "idempotency key is too long",
			})
		}

		userID := UserID(c)
		scoped := key + "|" + userID
		fingerprint := idempotency.Fingerprint(
			[]byte(userID),
			[]byte(c.Method()),
			[]byte(c.Path()),
			c.Body(),
		)
		ctx := c.UserContext()

		reservation, err := cfg.Store.Reserve(ctx, scoped, fingerprint, cfg.Clock(), cfg.TTL)
		if err != nil {
			if errors.Is(err, idempotency.ErrFingerprintMismatch) {
				return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
					"error":   "idempotency_key_reused",
					"message": "idempotency key already used for a different request",
				})
			}
			cfg.Logger.Error("idempotency reserve failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_error",
				"message": "unable to process idempotency key",
			})
		}

		switch reservation.State {
		case idempotency.ReservationStateCompleted:
			record := reservation.Record
			c.Set(replayHeader, "true")
			if record.ContentType != "" {
				c.Set(fiber.HeaderContentType, record.ContentType)
			}
			return c.Status(record.ResponseStatus).Send(record.ResponseBody)
		case idempotency.ReservationStatePending:
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "idempotency_in_progress",
				"message": "another request is processing this idempotency key",
			})
		}

		if err := c.Next(); err != nil {
			release(cfg, c, scoped)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			release(cfg, c, scoped)
			return nil
		}

		resp := idempotency.Response{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := cfg.Store.SaveResponse(ctx, scoped, fingerprint, resp, cfg.Clock(), cfg.TTL); err != nil {
			cfg.Logger.Error("idempotency save failed", zap.String("key", key), zap.Error(err))
			release(cfg, c, scoped)
		}
		return nil
	}
}

func release(cfg IdempotencyConfig, c *fiber.Ctx, scoped string) {
	if err := cfg.Store.Release(c.UserContext(), scoped); err != nil {
		cfg.Logger.Warn("idempotency release failed", zap.Error(err))
	}
}
