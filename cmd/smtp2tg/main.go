// Package main is the entry point for the SMTP-to-Telegram report bridge.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/regbridge/smtp2tg/internal/bridge"
	"github.com/regbridge/smtp2tg/internal/config"
	"github.com/regbridge/smtp2tg/internal/publish"
	"github.com/regbridge/smtp2tg/internal/publish/ses"
	"github.com/regbridge/smtp2tg/internal/publish/stdout"
	"github.com/regbridge/smtp2tg/internal/publish/telegram"
	"github.com/regbridge/smtp2tg/internal/smtp"
	smtptls "github.com/regbridge/smtp2tg/internal/tls"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Logging.Level)

	pub := selectPublisher(cfg)

	var tlsConfig *tls.Config
	if cfg.SMTP.WrapTLS {
		tlsConfig, err = smtptls.LoadOrGenerate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.SMTP.Host)
		if err != nil {
			slog.Error("failed to setup TLS", "error", err)
			os.Exit(1)
		}
	}

	server := smtp.New(smtp.ServerConfig{
		ListenAddr: cfg.Addr(),
		Hostname:   "localhost",
		Delivery:   bridge.New(pub),
		ClaimTLS:   cfg.SMTP.ClaimTLS,
		TLSConfig:  tlsConfig,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, initiating shutdown", "signal", sig)
		cancel()
	}()

	if !cfg.AutoStart {
		// The listener stays down until the process is restarted with
		// auto_start enabled; exiting here would look like a crash to a
		// process supervisor.
		slog.Info("auto_start disabled, idling without listener")
		<-ctx.Done()
		slog.Info("smtp2tg stopped")
		return
	}

	slog.Info("starting smtp2tg",
		"listen", cfg.Addr(),
		"publisher", pub.Name(),
		"claim_tls", cfg.SMTP.ClaimTLS,
		"wrap_tls", cfg.SMTP.WrapTLS,
	)

	if err := server.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("smtp2tg stopped")
}

// loadConfig loads configuration from the specified path (YAML + env
// override) or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectPublisher chooses the outbound backend based on configuration.
// If the publisher setting is present, it takes precedence; otherwise the
// first configured destination wins (telegram, then ses, then stdout).
func selectPublisher(cfg *config.Config) publish.Publisher {
	switch cfg.Publisher {
	case "telegram":
		if !cfg.TelegramConfigured() {
			slog.Error("telegram publisher selected but TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required")
			os.Exit(1)
		}
		slog.Info("using Telegram publisher", "chat_id", cfg.Telegram.ChatID)
		return telegram.New(telegram.Config{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})

	case "ses":
		if !cfg.SESConfigured() {
			slog.Error("ses publisher selected but SES_REGION, SES_SENDER and SES_RECIPIENT are required")
			os.Exit(1)
		}
		slog.Info("using AWS SES publisher",
			"region", cfg.SES.Region,
			"recipient", cfg.SES.Recipient,
		)
		p, err := ses.New(context.Background(), ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
			Recipient:       cfg.SES.Recipient,
		})
		if err != nil {
			slog.Error("failed to create SES publisher", "error", err)
			os.Exit(1)
		}
		return p

	case "stdout":
		slog.Info("using stdout publisher")
		return stdout.New()

	case "":
		if cfg.TelegramConfigured() {
			slog.Info("using Telegram publisher (auto-detected)", "chat_id", cfg.Telegram.ChatID)
			return telegram.New(telegram.Config{
				Token:  cfg.Telegram.Token,
				ChatID: cfg.Telegram.ChatID,
			})
		}
		if cfg.SESConfigured() {
			slog.Info("using AWS SES publisher (auto-detected)",
				"region", cfg.SES.Region,
				"recipient", cfg.SES.Recipient,
			)
			p, err := ses.New(context.Background(), ses.Config{
				Region:          cfg.SES.Region,
				AccessKeyID:     cfg.SES.AccessKeyID,
				SecretAccessKey: cfg.SES.SecretAccessKey,
				Sender:          cfg.SES.Sender,
				Recipient:       cfg.SES.Recipient,
			})
			if err != nil {
				slog.Error("failed to create SES publisher", "error", err)
				os.Exit(1)
			}
			return p
		}
		slog.Info("no destination configured, using stdout publisher")
		return stdout.New()

	default:
		slog.Error("unknown publisher", "publisher", cfg.Publisher)
		os.Exit(1)
		return nil
	}
}
