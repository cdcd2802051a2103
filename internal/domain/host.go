package domain

import (
	"fmt"
	"net"
	"path"
	"strconv"
	"strings"
)

// Defaults for host settings.
const (
	DefaultPort       = 5000
	DefaultProtocol   = "http"
	DefaultIgnoreSSL  = false
	DefaultDSMVersion = 7
)

// Setting names as exposed to the host.
const (
	SettingHostname   = "hostname"
	SettingPort       = "port"
	SettingProtocol   = "protocol"
	SettingIgnoreSSL  = "ignore_ssl"
	SettingDSMVersion = "dsm_version"
	SettingPath       = "path"
)

// SettingDescriptions lists every host setting with a human readable description, in display order.
var SettingDescriptions = [][2]string{
	{SettingHostname, "The hostname to your Synology NAS. (required)"},
	{SettingPort, fmt.Sprintf("The port to connect to your Synology NAS. Default: %d", DefaultPort)},
	{SettingProtocol, fmt.Sprintf("The protocol to use to connect to your Synology NAS. Options are 'http' or 'https'. Default: '%s'", DefaultProtocol)},
	{SettingIgnoreSSL, fmt.Sprintf("Ignores certificate errors if connecting with https. Default: %t", DefaultIgnoreSSL)},
	{SettingDSMVersion, fmt.Sprintf("The version of DSM on your Synology NAS. Default: %d", DefaultDSMVersion)},
	{SettingPath, "The path to store files. (required)"},
}

// SessionParams is everything needed to open an authenticated vendor session.
type SessionParams struct {
	Hostname   string
	Port       int
	Username   string
	Password   string
	Secure     bool
	CertVerify bool
	DSMVersion int
	OTPCode    string
}

// BaseURL returns the webapi base URL for the session.
func (p SessionParams) BaseURL() string {
	scheme := "http"
	if p.Secure {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(p.Hostname, strconv.Itoa(p.Port))
}

// IsRoot reports whether p denotes the remote root.
func IsRoot(p string) bool {
	return p == "" || p == "/"
}

// SplitRemotePath splits a remote path into parent and leaf name.
// "/volume1/annex" -> ("/volume1", "annex"), "/volume1" -> ("", "volume1").
func SplitRemotePath(p string) (string, string) {
	p = strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return "", p
	}
	return p[:idx], p[idx+1:]
}

// KeyPath maps a key to its directory under root.
func KeyPath(root, key string) string {
	return path.Join(root, key)
}
