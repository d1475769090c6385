package models

// ProviderIdentity is the claim set extracted from a successfully verified
// ID token. Subject is always set, email and picture may be empty.
type ProviderIdentity struct {
	Provider Provider
	Subject  string
	Email    string
	Picture  string
}
