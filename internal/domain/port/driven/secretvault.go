package driven

// SecretVault seals and reveals tenant credentials. No method returns an error
// or panics: every failure degrades to an empty value.
type SecretVault interface {
	// Encrypt returns a sealed envelope, or "" for empty input.
	Encrypt(plaintext string) string

	// Decrypt returns the plaintext of an envelope. Values that are not
	// envelopes are returned unchanged. Undecryptable envelopes yield "".
	Decrypt(value string) string

	// Mask returns a display form of the decrypted value.
	Mask(value string) string

	// IsMasked reports whether value is a masked display string.
	IsMasked(value string) bool
}
