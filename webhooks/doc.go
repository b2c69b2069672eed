// Package webhooks contains the inbound event verification protocol and the
// delivery processing boundary consumed by the HTTP layer.
//
// Verification is ordered and fail-closed: signature decoding, key presence,
// key validity, timestamp freshness, then the cryptographic check. Each step
// fails with a distinguishable error kind so the transport can map rejections
// without leaking why verification failed.
package webhooks
