// Package providers contains built-in service implementations, one per
// protocol family: OAuth2 authorization-code, OAuth 1.0a three-legged, and
// out-of-band basic credentials.
package providers
