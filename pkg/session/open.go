package session

import (
	"fmt"

	"igfeed/pkg/config"
	"igfeed/pkg/logger"
)

// Open builds a Manager from the configured backends, in order.
// An unreachable keychain is skipped with a warning; other backend
// failures are fatal.
func Open(cfg config.SessionsConfig, log logger.Logger) (*Manager, error) {
	var stores []Store

	for _, backend := range cfg.Backends {
		switch backend {
		case config.BackendFile:
			store, err := NewFileStore(cfg.Directory)
			if err != nil {
				return nil, fmt.Errorf("file session store: %w", err)
			}
			stores = append(stores, store)
		case config.BackendEncrypted:
			store, err := NewEncryptedFileStore(cfg.Directory, cfg.Passphrase)
			if err != nil {
				return nil, fmt.Errorf("encrypted session store: %w", err)
			}
			stores = append(stores, store)
		case config.BackendKeyring:
			store, err := NewKeyringStore()
			if err != nil {
				log.WithError(err).Warn("Keyring session store unavailable, skipping")
				continue
			}
			stores = append(stores, store)
		case config.BackendEnv:
			stores = append(stores, NewEnvironmentStore())
		default:
			return nil, fmt.Errorf("unknown session backend %q", backend)
		}
	}

	if len(stores) == 0 {
		return nil, fmt.Errorf("%w: no usable session backend", ErrStoreUnavailable)
	}

	log.DebugWithFields("Session stores ready", map[string]interface{}{
		"backends":  cfg.Backends,
		"directory": cfg.Directory,
	})
	return NewManager(stores...), nil
}
