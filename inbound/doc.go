// Package inbound exposes the webhook delivery endpoint over net/http.
//
// Every delivery is verified before any byte of it is acted on; refusal
// bodies stay generic so the endpoint cannot be used as a signature oracle.
package inbound
