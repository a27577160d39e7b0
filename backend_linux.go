package swa

import (
	"log/slog"
	"os"

	"github.com/1broseidon/swa/internal/config"
	"github.com/1broseidon/swa/internal/kms"
)

func systemBackends() []backend {
	return []backend{{
		name: config.BackendKMS,
		usable: func() bool {
			_, err := os.Stat("/dev/dri")
			return err == nil
		},
		open: func(cfg *config.Config, logger *slog.Logger) (Display, error) {
			d, err := kms.Open(cfg, logger)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
	}}
}
