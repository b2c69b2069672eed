// Package authority implements the HTTP clients for the remote credential
// authority: the OAuth2 token endpoint and the webhook public key
// distribution endpoint. Both clients write into the core stores and apply
// the bounded retry policy around every call.
package authority
