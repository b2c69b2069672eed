package core

import "context"

// refreshTokenLoop proactively renews the access token ahead of its expiry.
// Each iteration recomputes the sleep from the token currently in the store;
// a token whose expiry cannot be decoded is refreshed immediately. Issue
// failures are logged and retried on a fixed interval: this is a background
// loop, so indefinite retry is the desired behavior until the authority
// responds. Only cancellation terminates the loop.
func (s *Service) refreshTokenLoop(ctx context.Context) {
	for {
		token, _ := s.tokenStore.Get()
		expiry, decodable := DecodeTokenExpiry(token)
		delay := NextRefreshDelay(expiry, decodable, s.config.refreshBuffer(), s.clock())
		if delay > 0 {
			if waitWithContext(ctx, delay) != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		startedAt := s.clock()
		if _, err := s.tokenIssuer.Issue(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.observeOperation(ctx, startedAt, "token.refresh", err, map[string]any{
				"retry_in": s.config.tokenRetryInterval().String(),
			})
			if waitWithContext(ctx, s.config.tokenRetryInterval()) != nil {
				return
			}
			continue
		}
		s.observeOperation(ctx, startedAt, "token.refresh", nil, nil)
	}
}

// refreshPublicKeyLoop mirrors the token loop, driven by the key's declared
// validity window. A key with an unknown window is refreshed immediately.
func (s *Service) refreshPublicKeyLoop(ctx context.Context) {
	for {
		material, ok := s.keyStore.Get()
		delay := NextRefreshDelay(material.ValidUntil, ok && !material.ValidUntil.IsZero(), s.config.refreshBuffer(), s.clock())
		if delay > 0 {
			if waitWithContext(ctx, delay) != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		startedAt := s.clock()
		if err := s.keyIssuer.Issue(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.observeOperation(ctx, startedAt, "publickey.refresh", err, map[string]any{
				"retry_in": s.config.tokenRetryInterval().String(),
			})
			if waitWithContext(ctx, s.config.tokenRetryInterval()) != nil {
				return
			}
			continue
		}
		s.observeOperation(ctx, startedAt, "publickey.refresh", nil, nil)
	}
}
