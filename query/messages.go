package query

const (
	TypeGetToken         = "riskauth.query.token.get"
	TypeGetPublicKey     = "riskauth.query.publickey.get"
	TypeCredentialStatus = "riskauth.query.credentials.status"
)

type GetTokenMessage struct{}

func (GetTokenMessage) Type() string { return TypeGetToken }

func (GetTokenMessage) Validate() error { return nil }

type GetPublicKeyMessage struct{}

func (GetPublicKeyMessage) Type() string { return TypeGetPublicKey }

func (GetPublicKeyMessage) Validate() error { return nil }

type CredentialStatusMessage struct{}

func (CredentialStatusMessage) Type() string { return TypeCredentialStatus }

func (CredentialStatusMessage) Validate() error { return nil }
