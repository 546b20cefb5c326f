package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// HandlerName identifies the relay consumer in the watermill router.
const HandlerName = "ON_RELAYED_FRAME"

func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp: router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)
	return router, nil
}

// [REGISTRATION_PIPELINE]
func RegisterHandlers(router *message.Router, sub message.Subscriber, topic string, c *Consumer, logger *slog.Logger) {
	router.AddConsumerHandler(HandlerName, topic, sub, c.Handle).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(logger),
		middleware.Timeout(5*time.Second),
	)

	logger.Info("AMQP_RELAY_READY", "topic", topic, "node", c.nodeID)
}
