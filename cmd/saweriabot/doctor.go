package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/config"
)

const doctorDialTimeout = 5 * time.Second

// doctorReport counts check outcomes and prints them to w.
type doctorReport struct {
	w                      io.Writer
	passed, failed, warned int
}

func (r *doctorReport) pass(check, detail string) {
	fmt.Fprintf(r.w, "  [PASS] %-20s %s\n", check, detail)
	r.passed++
}

func (r *doctorReport) fail(check, detail string) {
	fmt.Fprintf(r.w, "  [FAIL] %-20s %s\n", check, detail)
	r.failed++
}

func (r *doctorReport) warn(check, detail string) {
	fmt.Fprintf(r.w, "  [WARN] %-20s %s\n", check, detail)
	r.warned++
}

func doctorCmd() *cobra.Command {
	var online bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your saweriabot setup",
		Long: `Verifies that the configuration, Discord credentials, relay endpoint and
keep-alive port are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDoctor(ctx, cmd.OutOrStdout(), resolveConfigPath(), online)
		},
	}
	cmd.Flags().BoolVar(&online, "online", false, "also verify the bot token and channel against the Discord API")
	return cmd
}

func runDoctor(ctx context.Context, w io.Writer, cfgPath string, online bool) error {
	fmt.Fprintf(w, "saweriabot doctor v%s\n", version)
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	r := &doctorReport{w: w}

	// 1. Config file
	if _, err := os.Stat(config.ExpandPath(cfgPath)); err != nil {
		r.warn("Config file", fmt.Sprintf("not found at %s, using defaults and environment", cfgPath))
	} else {
		r.pass("Config file", cfgPath)
	}

	// 2. Config loads and validates
	cfg, err := config.Load(cfgPath)
	if err != nil {
		r.fail("Config validation", err.Error())
		return r.summary()
	}
	r.pass("Config validation", "valid")

	// 3. Discord settings
	if cfg.Discord.Token == "" {
		r.fail("Discord token", "not set (DISCORD_BOT_TOKEN)")
	} else {
		r.pass("Discord token", config.Sanitize(cfg).Discord.Token)
	}
	switch {
	case cfg.Discord.ChannelID == "":
		r.fail("Discord channel", "not set (DISCORD_CHANNEL_ID)")
	case !isSnowflake(cfg.Discord.ChannelID):
		r.warn("Discord channel", fmt.Sprintf("%q does not look like a channel ID", cfg.Discord.ChannelID))
	default:
		r.pass("Discord channel", cfg.Discord.ChannelID)
	}
	if !cfg.Discord.RequireWebhook {
		r.warn("Webhook filter", "disabled: any message in the channel is parsed")
	}

	if online && cfg.Discord.Token != "" {
		checkDiscordAPI(r, cfg)
	}

	// 4. Relay endpoint reachable
	if err := checkEndpoint(ctx, cfg.Relay.Endpoint); err != nil {
		r.fail("Relay endpoint", err.Error())
	} else {
		r.pass("Relay endpoint", cfg.Relay.Endpoint)
	}

	// 5. Keep-alive port
	if cfg.Server.Enabled {
		if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
			r.warn("Keep-alive port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
		} else {
			r.pass("Keep-alive port", fmt.Sprintf(":%d available", cfg.Server.Port))
		}
	}

	// 6. Alerts
	var alerts []string
	if cfg.Alerts.Telegram.Enabled {
		alerts = append(alerts, "telegram")
	}
	if cfg.Alerts.Slack.Enabled {
		alerts = append(alerts, "slack")
	}
	if len(alerts) == 0 {
		r.warn("Failure alerts", "none configured: failed relays are only logged")
	} else {
		r.pass("Failure alerts", fmt.Sprint(alerts))
	}

	return r.summary()
}

func (r *doctorReport) summary() error {
	fmt.Fprintf(r.w, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(r.w, "Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		fmt.Fprintf(r.w, "\nPlease fix the failed checks before running saweriabot.\n")
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	if r.warned > 0 {
		fmt.Fprintf(r.w, "\nsaweriabot should work but consider fixing the warnings.\n")
	} else {
		fmt.Fprintf(r.w, "\nAll checks passed! saweriabot is ready to run.\n")
	}
	return nil
}

// checkDiscordAPI verifies the token and channel over REST, without opening
// a gateway connection.
func checkDiscordAPI(r *doctorReport, cfg *config.Config) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		r.fail("Discord API", err.Error())
		return
	}
	me, err := session.User("@me")
	if err != nil {
		r.fail("Discord API", fmt.Sprintf("token rejected: %v", err))
		return
	}
	r.pass("Discord API", "logged in as "+me.String())

	if cfg.Discord.ChannelID == "" {
		return
	}
	ch, err := session.Channel(cfg.Discord.ChannelID)
	if err != nil {
		r.fail("Discord channel API", fmt.Sprintf("cannot read channel: %v", err))
		return
	}
	r.pass("Discord channel API", "#"+ch.Name)
}

// checkEndpoint resolves the endpoint host and opens a TCP connection to it.
func checkEndpoint(ctx context.Context, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}

	ctx, cancel := context.WithTimeout(ctx, doctorDialTimeout)
	defer cancel()

	if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
		return fmt.Errorf("dns lookup %s: %w", host, err)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("connect %s: %w", net.JoinHostPort(host, port), err)
	}
	conn.Close()
	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func isSnowflake(id string) bool {
	if len(id) < 15 || len(id) > 20 {
		return false
	}
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}
