package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RefreshTokenMessage]       = (*RefreshTokenCommand)(nil)
	_ gocmd.Commander[RefreshPublicKeyMessage]   = (*RefreshPublicKeyCommand)(nil)
	_ gocmd.Commander[InstallFallbackKeyMessage] = (*InstallFallbackKeyCommand)(nil)
	_ gocmd.Commander[VerifyDeliveryMessage]     = (*VerifyDeliveryCommand)(nil)
)
