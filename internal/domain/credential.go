package domain

// ServiceIDSuffix is appended to the hostname to form the vault service id.
const ServiceIDSuffix = "git-annex-remote-synology"

// Environment variables that override every other credential source.
const (
	UsernameEnv    = "NAS_USERNAME"
	PasswordEnv    = "NAS_PASSWORD"
	TOTPCommandEnv = "NAS_TOTP_COMMAND"
)

// CredentialRecord is the non-secret part of a credential, persisted per hostname.
// The password never lives here; see ServiceID.
type CredentialRecord struct {
	Hostname    string
	Username    string
	TOTPCommand string
}

// ServiceID returns the vault service id for a hostname.
func ServiceID(hostname string) string {
	return hostname + "-" + ServiceIDSuffix
}

// Credentials is a fully resolved login.
type Credentials struct {
	Username    string
	Password    string
	TOTPCommand string
	TOTPCode    string // empty when no OTP is required
}
