package vpn

import "unicode/utf8"

// Validate checks the caller-supplied arguments of req in a fixed order and
// reports only the first failure. It has no side effects.
//
// An empty Protocol is the zero value of an unset argument, so it is a type
// mismatch rather than an unsupported protocol and is never recorded as state.
func Validate(req Request) error {
	if req.Protocol == "" || !utf8.ValidString(string(req.Protocol)) {
		return TypeMismatch("protocol", "a non-empty string")
	}
	if req.Session == nil {
		return TypeMismatch("session", "an authenticated session")
	}
	if !utf8.ValidString(req.ServerName) {
		return TypeMismatch("servername", "a valid UTF-8 string")
	}
	if req.IPList == nil {
		return TypeMismatch("ip_list", "a list of addresses")
	}
	if len(req.IPList) == 0 {
		return ErrNoServers
	}
	return nil
}
