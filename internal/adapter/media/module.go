package media

import (
	"context"

	"github.com/webitel/im-realtime-service/config"
	"go.uber.org/fx"
)

// Module is only added to the graph when media.bucket is configured.
var Module = fx.Module("media",
	fx.Provide(func(cfg *config.Config) (*Uploader, error) {
		return NewUploader(context.Background(), cfg.Media)
	}),
)
