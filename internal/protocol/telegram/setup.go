package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/nchat/internal/errors"
)

// Setup asks for a bot token, verifies it with getMe and writes
// telegram.conf. Nothing is written unless verification succeeds.
func (t *Telegram) Setup(ctx context.Context) error {
	if t.env.Prompter == nil {
		return fmt.Errorf("%w: telegram setup needs an interactive prompt", errors.ErrSetupFailed)
	}

	existing, err := LoadSettings(t.dir)
	if err != nil {
		t.logger.Warn("ignoring unreadable telegram settings", "error", err)
		existing = Settings{}
	}

	t.env.Prompter.Printf("Create a bot with @BotFather and paste its token.")
	token, err := t.env.Prompter.Prompt(ctx, "Bot token: ", true)
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSetupFailed, err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty bot token", errors.ErrSetupFailed)
	}

	s := Settings{BotToken: token, APIURL: existing.APIURL}
	me, err := t.newClient(s).GetMe(ctx)
	if err != nil {
		t.logger.Warn("bot token verification failed", "error", err)
		return fmt.Errorf("%w: verify bot token: %w", errors.ErrSetupFailed, err)
	}

	if err := SaveSettings(t.dir, s); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSetupFailed, err)
	}
	t.env.Prompter.Printf("Logged in as %s (@%s).", me.DisplayName(), me.Username)
	t.logger.Info("telegram setup complete", "bot", me.Username)
	return nil
}
