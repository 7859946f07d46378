// Package cryptox holds the cryptographic primitives used by authkeeper:
// adaptive password hashing, AES-GCM envelopes for stored PII, secure random
// secrets and integers, and one-way digests for high-entropy credentials.
package cryptox
