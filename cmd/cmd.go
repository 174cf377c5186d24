package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/urfave/cli/v2"
	"github.com/webitel/im-tag-router/config"
	wsclient "github.com/webitel/im-tag-router/infra/client/ws"
	pubsubadapter "github.com/webitel/im-tag-router/internal/adapter/pubsub"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

const (
	ServiceName      = "im-tag-router"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Tag-routed WebSocket fan-out server",
		Version: fmt.Sprintf("%s (%s, %s@%s)", version, commit, branch, commitDate),
		Commands: []*cli.Command{
			serverCmd(),
			sendCmd(),
			publishCmd(),
		},
	}

	return app.Run(os.Args)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config_file",
		Usage:   "Path to the configuration file",
		EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
	}
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the WebSocket server",
		Flags:   []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

func requestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Message payload (JSON object or plain string)", Required: true},
		&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Routing tag name=value; integer values stay integers"},
		&cli.StringFlag{Name: "key", Usage: "Application key"},
		&cli.StringFlag{Name: "secret", Usage: "Application secret"},
	}
}

func sendCmd() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send one request through a WebSocket connection",
		Flags: append(requestFlags(),
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8080/ws", Usage: "Server WebSocket URL"},
			&cli.DurationFlag{Name: "wait", Usage: "Print routed payloads received within this duration"},
			&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "Handshake header 'Name: value'"},
		),
		Action: func(c *cli.Context) error {
			req, err := requestFromFlags(c)
			if err != nil {
				return err
			}

			query := url.Values{}
			if key := c.String("key"); key != "" {
				query.Set("key", key)
				query.Set("secret", c.String("secret"))
			}

			header, err := parseHeaderFlags(c.StringSlice("header"))
			if err != nil {
				return err
			}

			client, err := wsclient.Dial(c.Context, c.String("url"), query, wsclient.WithHeader(header))
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Send(c.Context, req); err != nil {
				return err
			}

			wait := c.Duration("wait")
			if wait <= 0 {
				return nil
			}
			ctx, cancel := context.WithTimeout(c.Context, wait)
			defer cancel()
			for {
				data, err := client.Read(ctx)
				if err != nil {
					return nil
				}
				fmt.Fprintln(c.App.Writer, string(data))
			}
		},
	}
}

func publishCmd() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Publish one request to the broker topic consumed by the servers",
		Flags: append(requestFlags(), configFlag()),
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			if cfg.Broker.URL == "" {
				return model.Configurationf("cmd.publish", "broker.url is required to publish")
			}

			req, err := requestFromFlags(c)
			if err != nil {
				return err
			}

			provider, err := pubsubadapter.NewProvider(cfg.Broker, watermill.NewSlogLogger(ProvideLogger(cfg)))
			if err != nil {
				return err
			}
			defer provider.Close()

			return pubsubadapter.NewRequestDispatcher(provider.Publisher(), cfg.Broker.Topic).Publish(c.Context, req)
		},
	}
}

func requestFromFlags(c *cli.Context) (*model.Request, error) {
	var message any = c.String("message")
	if raw := strings.TrimSpace(c.String("message")); strings.HasPrefix(raw, "{") {
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, model.Validationf("cmd.request", "message is not a valid JSON object").WithCause(err)
		}
		message = obj
	}

	tags, err := parseTagFlags(c.StringSlice("tag"))
	if err != nil {
		return nil, err
	}

	md := map[string]any{}
	if key := c.String("key"); key != "" {
		md[model.MetadataKey] = key
		md[model.MetadataSecret] = c.String("secret")
	}
	return model.NewRequest(message).WithTags(tags).WithMetadata(md), nil
}

// parseTagFlags reads name=value pairs; values that parse as integers become int tags.
func parseTagFlags(pairs []string) (model.TagSet, error) {
	tags := make(model.TagSet, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, model.Validationf("cmd.tags", "tag '%s' is not name=value", pair)
		}
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			tags[name] = model.IntTag(i)
			continue
		}
		tags[name] = model.StringTag(value)
	}
	return tags, nil
}

// parseHeaderFlags reads 'Name: value' pairs into handshake headers.
func parseHeaderFlags(lines []string) (http.Header, error) {
	header := make(http.Header, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, model.Validationf("cmd.headers", "header '%s' is not 'Name: value'", line)
		}
		header.Add(name, strings.TrimSpace(value))
	}
	return header, nil
}
