package auth

// Provider is the authentication interface consumed by the GQL client,
// the telemetry pulser and the PubSub pool. *Authenticator satisfies it.
type Provider interface {
	AuthToken() string
	UserID() string
	DeviceID() string
	ClientSession() string
	Username() string
	GetAuthHeaders() map[string]string
}
