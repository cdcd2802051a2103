package remote

import (
	"strconv"

	"github.com/vertextoedge/git-annex-remote-synology/internal/domain"
)

// setting is a host setting resolved at most once
type setting[T any] struct {
	value    T
	resolved bool
}

func (s *setting[T]) get(resolve func() (T, error)) (T, error) {
	if s.resolved {
		return s.value, nil
	}
	v, err := resolve()
	if err != nil {
		var zero T
		return zero, err
	}
	s.value = v
	s.resolved = true
	return v, nil
}

// settings holds the memoized host configuration
type settings struct {
	hostname   setting[string]
	port       setting[int]
	protocol   setting[string]
	ignoreSSL  setting[bool]
	dsmVersion setting[int]
	rootPath   setting[string]
}

func (r *Remote) raw(name string) (string, error) {
	value, err := r.host.GetConfig(name)
	if err != nil {
		return "", domain.NewConfigurationError(name, "could not be read", err)
	}
	return value, nil
}

func (r *Remote) required(name string) (string, error) {
	value, err := r.raw(name)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", domain.NewConfigurationError(name, "a value must be provided", nil)
	}
	return value, nil
}

func (r *Remote) optionalInt(name string, def int) (int, error) {
	value, err := r.raw(name)
	if err != nil || value == "" {
		return def, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, domain.NewConfigurationError(name, "must be an integer", err)
	}
	return n, nil
}

// Hostname returns the NAS hostname. It is required.
func (r *Remote) Hostname() (string, error) {
	return r.settings.hostname.get(func() (string, error) {
		return r.required(domain.SettingHostname)
	})
}

// Port returns the NAS port
func (r *Remote) Port() (int, error) {
	return r.settings.port.get(func() (int, error) {
		return r.optionalInt(domain.SettingPort, domain.DefaultPort)
	})
}

// Protocol returns "http" or "https"
func (r *Remote) Protocol() (string, error) {
	return r.settings.protocol.get(func() (string, error) {
		value, err := r.raw(domain.SettingProtocol)
		if err != nil {
			return "", err
		}
		if value == "" {
			return domain.DefaultProtocol, nil
		}
		if value != "http" && value != "https" {
			return "", domain.NewConfigurationError(domain.SettingProtocol, "is not either 'http' or 'https'", nil)
		}
		return value, nil
	})
}

// IgnoreSSL reports whether certificate errors are ignored
func (r *Remote) IgnoreSSL() (bool, error) {
	return r.settings.ignoreSSL.get(func() (bool, error) {
		value, err := r.raw(domain.SettingIgnoreSSL)
		if err != nil || value == "" {
			return domain.DefaultIgnoreSSL, err
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, domain.NewConfigurationError(domain.SettingIgnoreSSL, "must be true or false", err)
		}
		return b, nil
	})
}

// DSMVersion returns the DSM major version
func (r *Remote) DSMVersion() (int, error) {
	return r.settings.dsmVersion.get(func() (int, error) {
		return r.optionalInt(domain.SettingDSMVersion, domain.DefaultDSMVersion)
	})
}

// RootPath returns the folder keys are stored under. It is required.
func (r *Remote) RootPath() (string, error) {
	return r.settings.rootPath.get(func() (string, error) {
		return r.required(domain.SettingPath)
	})
}

// sessionParams resolves every connection setting
func (r *Remote) sessionParams() (domain.SessionParams, error) {
	var params domain.SessionParams
	var err error

	if params.Hostname, err = r.Hostname(); err != nil {
		return params, err
	}
	if params.Port, err = r.Port(); err != nil {
		return params, err
	}
	protocol, err := r.Protocol()
	if err != nil {
		return params, err
	}
	ignoreSSL, err := r.IgnoreSSL()
	if err != nil {
		return params, err
	}
	if params.DSMVersion, err = r.DSMVersion(); err != nil {
		return params, err
	}

	params.Secure = protocol == "https"
	params.CertVerify = !ignoreSSL
	return params, nil
}
