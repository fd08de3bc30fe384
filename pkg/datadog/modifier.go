package datadog

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/markuskont/go-sigma-datadog"
)

// Wildcard matches any sequence of characters in the query language
const Wildcard = "*"

// Expand turns an escaped value into a query term according to modifier
func Expand(mod sigma.TextPatternModifier, escaped string) (string, error) {
	switch mod {
	case sigma.TextPatternNone:
		return escaped, nil
	case sigma.TextPatternContains:
		return Wildcard + escaped + Wildcard, nil
	case sigma.TextPatternPrefix:
		return escaped + Wildcard, nil
	case sigma.TextPatternSuffix:
		return Wildcard + escaped, nil
	case sigma.TextPatternCidr:
		return cidrTerm(escaped)
	default:
		return "", sigma.ErrUnsupportedFeature{
			Feature: fmt.Sprintf("modifier %s", mod),
			Msg:     fmt.Sprintf("value %s", escaped),
		}
	}
}

// cidrTerm lowers an octet aligned ipv4 network into a prefix match
// 10.0.0.0/8 -> 10.* and 192.168.1.7/32 -> 192.168.1.7
func cidrTerm(value string) (string, error) {
	prefix, err := netip.ParsePrefix(strings.TrimSpace(value))
	if err != nil {
		return "", sigma.ErrUnsupportedFeature{
			Feature: "cidr",
			Msg:     fmt.Sprintf("invalid network %s: %s", value, err),
		}
	}
	if !prefix.Addr().Is4() {
		return "", sigma.ErrUnsupportedFeature{
			Feature: "cidr",
			Msg:     fmt.Sprintf("network %s is not ipv4", value),
		}
	}
	bits := prefix.Bits()
	if bits == 0 || bits%8 != 0 {
		return "", sigma.ErrUnsupportedFeature{
			Feature: "cidr",
			Msg:     fmt.Sprintf("prefix length /%d of %s is not octet aligned", bits, value),
		}
	}
	addr := prefix.Masked().Addr().As4()
	octets := make([]string, 0, bits/8)
	for _, o := range addr[:bits/8] {
		octets = append(octets, fmt.Sprintf("%d", o))
	}
	term := strings.Join(octets, ".")
	if bits < 32 {
		term += "." + Wildcard
	}
	return term, nil
}
