package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/ini.v1"
)

// Profile is a saved connection: a URI plus the per-I/O timeout to pass to
// iio.Connect. Profiles live in an INI file so a user can keep one section
// per board ("[pluto]" with "uri = ip:192.168.2.1" and an optional
// "timeout_ms") without retyping URIs on every run.
type Profile struct {
	Name    string
	URI     string
	Timeout time.Duration
}

// defaultProfilePath is "$HOME/.iioctl.ini", checked only when -profiles
// isn't given explicitly.
func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".iioctl.ini"
	}
	return filepath.Join(home, ".iioctl.ini")
}

// loadProfiles parses path into a name -> Profile map. A missing file is
// not an error: it just means no profiles are configured yet.
func loadProfiles(path string) (map[string]Profile, error) {
	out := make(map[string]Profile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return out, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("iioctl: loading profiles %s: %w", path, err)
	}
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		uri := sec.Key("uri").String()
		if uri == "" {
			continue
		}
		timeout := 5 * time.Second
		if ms := sec.Key("timeout_ms").MustInt(0); ms > 0 {
			timeout = time.Duration(ms) * time.Millisecond
		}
		out[sec.Name()] = Profile{Name: sec.Name(), URI: uri, Timeout: timeout}
	}
	return out, nil
}

// resolveTarget returns the URI and timeout for either a profile name looked
// up in path or a raw URI starting with "ip:", "usb:" or "serial:".
func resolveTarget(path, target string) (string, time.Duration, error) {
	profiles, err := loadProfiles(path)
	if err != nil {
		return "", 0, err
	}
	if p, ok := profiles[target]; ok {
		return p.URI, p.Timeout, nil
	}
	for _, prefix := range []string{"ip:", "usb:", "serial:"} {
		if len(target) >= len(prefix) && target[:len(prefix)] == prefix {
			return target, 5 * time.Second, nil
		}
	}
	return "", 0, fmt.Errorf("iioctl: %q is neither a known profile in %s nor a uri (ip:/usb:/serial:)", target, path)
}
