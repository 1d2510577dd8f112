package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/config"
)

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup: Discord → relay endpoint → server → alerts → save config",
		Long:  "Guides you through the Discord bot token and channel, the relay endpoint, the keep-alive port and optional failure alerts. Writes config to the path used by --config or default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.InOrStdin(), cmd.OutOrStdout(), resolveConfigPath())
		},
	}
}

// prompter reads answers line by line, falling back to a default on empty input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	s := strings.TrimSpace(line)
	if s == "" {
		return def, nil
	}
	return s, nil
}

func (p *prompter) confirm(label string, def bool) (bool, error) {
	d := "n"
	if def {
		d = "y"
	}
	ans, err := p.ask(label+" (y/n)", d)
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

func runSetup(in io.Reader, out io.Writer, cfgPath string) error {
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}
	p := &prompter{in: bufio.NewReader(in), out: out}

	// Step 1: Discord
	fmt.Fprintln(out, "\n--- Step 1: Discord ---")
	if cfg.Discord.Token, err = p.ask("Bot token (or ${DISCORD_BOT_TOKEN})", orDefault(cfg.Discord.Token, "${DISCORD_BOT_TOKEN}")); err != nil {
		return err
	}
	if cfg.Discord.ChannelID, err = p.ask("Channel ID receiving Saweria notifications", cfg.Discord.ChannelID); err != nil {
		return err
	}
	if cfg.Discord.RequireWebhook, err = p.confirm("Only accept webhook messages", cfg.Discord.RequireWebhook); err != nil {
		return err
	}

	// Step 2: Relay
	fmt.Fprintln(out, "\n--- Step 2: Relay endpoint ---")
	if cfg.Relay.Endpoint, err = p.ask("Endpoint URL", cfg.Relay.Endpoint); err != nil {
		return err
	}

	// Step 3: Keep-alive server
	fmt.Fprintln(out, "\n--- Step 3: Keep-alive server ---")
	if cfg.Server.Enabled, err = p.confirm("Serve / and /ping", cfg.Server.Enabled); err != nil {
		return err
	}
	if cfg.Server.Enabled {
		port, err := p.ask("Port", strconv.Itoa(cfg.Server.Port))
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q", port)
		}
		cfg.Server.Port = n
	}

	// Step 4: Alerts
	fmt.Fprintln(out, "\n--- Step 4: Failure alerts ---")
	if cfg.Alerts.Telegram.Enabled, err = p.confirm("Send Telegram alerts", cfg.Alerts.Telegram.Enabled); err != nil {
		return err
	}
	if cfg.Alerts.Telegram.Enabled {
		if cfg.Alerts.Telegram.Token, err = p.ask("Telegram bot token (from @BotFather)", cfg.Alerts.Telegram.Token); err != nil {
			return err
		}
		if cfg.Alerts.Telegram.ChatID, err = p.ask("Telegram chat ID", cfg.Alerts.Telegram.ChatID); err != nil {
			return err
		}
	}
	if cfg.Alerts.Slack.Enabled, err = p.confirm("Send Slack alerts", cfg.Alerts.Slack.Enabled); err != nil {
		return err
	}
	if cfg.Alerts.Slack.Enabled {
		if cfg.Alerts.Slack.WebhookURL, err = p.ask("Slack incoming webhook URL", cfg.Alerts.Slack.WebhookURL); err != nil {
			return err
		}
	}

	// ${VAR} placeholders are resolved at load time, so validate a resolved copy.
	resolved := *cfg
	resolved.Relay.Endpoint = config.ExpandEnvVars(cfg.Relay.Endpoint)
	if err := config.Validate(&resolved); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nConfig saved to %s\n", cfgPath)
	fmt.Fprintln(out, "Next: run 'saweriabot doctor', then 'saweriabot run'.")
	return nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
