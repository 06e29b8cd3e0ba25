package mylog

import (
	"context"
	"log/slog"
	"os"

	"stagetalk/app/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

// Preinit installs a console logger before the config is available.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

func Init(cfg *config.Config) error {
	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),

			// errors and records tagged with "alert" go to telegram
			func(_ context.Context, r slog.Record) bool {
				hasAlert := false

				r.Attrs(func(attr slog.Attr) bool {
					if attr.Key == "alert" {
						hasAlert = true
						return false
					}

					return true
				})

				return r.Level == slog.LevelError || hasAlert
			},
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}
