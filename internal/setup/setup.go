// Package setup implements nchat's setup mode: the user picks one known
// protocol, its interactive Setup runs, and on success the protocol is
// enabled in main.conf.
package setup

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Iron-Ham/nchat/internal/config"
	"github.com/Iron-Ham/nchat/internal/errors"
	"github.com/Iron-Ham/nchat/internal/logging"
	"github.com/Iron-Ham/nchat/internal/protocol"
)

// Run lists protocols, asks which one to set up and runs its Setup. On
// success the protocol's enablement key is set in store and its name is
// returned; the caller persists store. Every failure wraps
// errors.ErrSetupFailed and leaves store unchanged.
func Run(ctx context.Context, protocols []*protocol.Descriptor, store *config.Store, p protocol.Prompter, logger *logging.Logger) (string, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if len(protocols) == 0 {
		return "", fmt.Errorf("%w: no protocols available", errors.ErrSetupFailed)
	}

	p.Printf("Protocols:")
	for i, d := range protocols {
		p.Printf("%d. %s", i+1, d.Name())
	}
	p.Printf("0. Exit")

	answer, err := p.Prompt(ctx, "Select protocol: ", false)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrSetupFailed, err)
	}
	choice, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || choice < 0 || choice > len(protocols) {
		return "", fmt.Errorf("%w: invalid choice %q", errors.ErrSetupFailed, strings.TrimSpace(answer))
	}
	if choice == 0 {
		return "", fmt.Errorf("%w: cancelled", errors.ErrSetupFailed)
	}

	d := protocols[choice-1]
	name := d.Name()
	logger.Info("setting up protocol", "protocol", name)

	if err := d.Protocol.Setup(ctx); err != nil {
		logger.Warn("protocol setup failed", "protocol", name, "error", err)
		if errors.Is(err, errors.ErrSetupFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", errors.ErrSetupFailed, name, err)
	}

	store.SetBool(config.EnabledKey(name), true)
	logger.Info("protocol set up", "protocol", name)
	return name, nil
}
