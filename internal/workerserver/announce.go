package workerserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Announce registers this node with the gateway, retrying with exponential
// backoff until the gateway accepts or ctx is cancelled. The gateway is
// routinely still starting when workers come up, so patience here is part
// of the protocol.
func (s *Server) Announce(ctx context.Context) error {
	addr := s.cfg.AdvertiseAddr
	if addr == "" {
		addr = s.cfg.Addr
	}

	roles := s.Roles()
	if len(roles) == 0 {
		return fmt.Errorf("no roles to announce: all collaborators failed their startup probes")
	}

	rolesWire := make([]string, len(roles))
	for i, r := range roles {
		rolesWire[i] = string(r)
	}
	body, err := json.Marshal(map[string]any{"addr": addr, "roles": rolesWire})
	if err != nil {
		return fmt.Errorf("marshaling registration: %w", err)
	}

	register := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.cfg.GatewayURL+"/register", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusBadRequest:
			// The gateway rejected the registration itself; retrying the
			// same payload cannot help.
			return backoff.Permanent(fmt.Errorf("gateway rejected registration: %d", resp.StatusCode))
		default:
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
	}

	notify := func(err error, next time.Duration) {
		s.logger.Warn("gateway registration failed, retrying",
			"gateway", s.cfg.GatewayURL, "retry_in", next, "error", err)
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.RetryNotify(register, policy, notify); err != nil {
		return fmt.Errorf("registering with gateway: %w", err)
	}

	s.logger.Info("registered with gateway",
		"gateway", s.cfg.GatewayURL, "addr", addr, "roles", roles)
	return nil
}
