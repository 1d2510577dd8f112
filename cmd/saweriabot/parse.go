package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/channel"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/config"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/extract"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/relay"
)

type parseOutput struct {
	Record  domain.DonationRecord `json:"record"`
	Payload relay.Payload         `json:"payload"`
	Result  *forwardOutput        `json:"result,omitempty"`
}

type forwardOutput struct {
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status,omitempty"`
	RequestID  string `json:"requestId"`
	DurationMS int64  `json:"durationMs"`
	Response   any    `json:"response,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

func parseCmd() *cobra.Command {
	var (
		forward  bool
		text     string
		endpoint string
	)

	cmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Extract a donation from a Discord message JSON and optionally forward it",
		Long: `Reads a Discord message object (as returned by the Discord API) from a file or
stdin, prints the extracted donation record and the payload that would be
sent. With --forward the payload is posted to the configured endpoint.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var msg domain.InboundMessage
			if text != "" {
				msg = domain.InboundMessage{Channel: "cli", ID: "cli", Content: text, CreatedAt: time.Now()}
			} else {
				src := "-"
				if len(args) == 1 {
					src = args[0]
				}
				m, err := readDiscordMessage(cmd.InOrStdin(), src)
				if err != nil {
					return err
				}
				msg = m
			}

			rec := extract.Extract(msg)
			out := parseOutput{Record: rec, Payload: relay.NewPayload(rec)}

			var fwdErr error
			if forward {
				res, err := forwardRecord(cmd.Context(), endpoint, rec)
				if err != nil {
					return err
				}
				out.Result = toForwardOutput(res)
				fwdErr = res.Err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if fwdErr != nil {
				return fmt.Errorf("forward failed: %w", fwdErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&forward, "forward", false, "post the extracted donation to the relay endpoint")
	cmd.Flags().StringVar(&text, "text", "", "parse a plain message body instead of a message JSON")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "override relay.endpoint")
	return cmd
}

// readDiscordMessage decodes a Discord message object from src ("-" is stdin).
// A missing timestamp is treated as now.
func readDiscordMessage(stdin io.Reader, src string) (domain.InboundMessage, error) {
	r := stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return domain.InboundMessage{}, fmt.Errorf("open message: %w", err)
		}
		defer f.Close()
		r = f
	}

	var m discordgo.Message
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return domain.InboundMessage{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return channel.ToInbound(&m), nil
}

func forwardRecord(ctx context.Context, endpoint string, rec domain.DonationRecord) (relay.Result, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return relay.Result{}, fmt.Errorf("load config: %w", err)
	}
	if endpoint == "" {
		endpoint = cfg.Relay.Endpoint
	}
	client, err := relay.NewClient(relay.Config{
		Endpoint:     endpoint,
		SourceHeader: cfg.Relay.SourceHeader,
		HTTPClient:   relay.NewHTTPClient(time.Duration(cfg.Relay.TimeoutSeconds) * time.Second),
		Logger:       logger,
	})
	if err != nil {
		return relay.Result{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return client.Forward(ctx, rec), nil
}

func toForwardOutput(res relay.Result) *forwardOutput {
	out := &forwardOutput{
		OK:         res.OK,
		StatusCode: res.StatusCode,
		RequestID:  res.RequestID,
		DurationMS: res.Duration.Milliseconds(),
		Response:   res.Response,
	}
	if !res.OK {
		out.Body = res.Body
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
