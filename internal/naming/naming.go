// Package naming holds the array-side naming conventions shared by the
// Unity and VNX packages: host address parsing, host names derived from
// addresses, and initiator uid classification.
package naming

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

// DummyLUNName is the name of placeholder LUNs attached by older tooling to
// keep HLU 0 occupied. They are removed whenever a host detaches.
const DummyLUNName = "storops_dummy_lun"

// HostAddress is a parsed host address, optionally carrying a subnet.
type HostAddress struct {
	Address string
	// Netmask is set for IPv4 subnets, in dotted form.
	Netmask string
	// PrefixLength is set for IPv6 subnets.
	PrefixLength int
}

// IsIPv6 reports whether the address is an IPv6 address.
func (a HostAddress) IsIPv6() bool {
	return strings.Contains(a.Address, ":")
}

// IsSubnet reports whether the address names a subnet rather than one host.
func (a HostAddress) IsSubnet() bool {
	return a.Netmask != "" || a.PrefixLength > 0
}

// HostName is the name given to a host created for this address.
// Format: {address} or {address}_{netmask}
//
// Example: 10.0.0.0/24 → 10.0.0.0_255.255.255.0
func (a HostAddress) HostName() string {
	if a.Netmask != "" {
		return fmt.Sprintf("%s_%s", a.Address, a.Netmask)
	}
	return a.Address
}

// LooksLikeAddress reports whether s should be treated as an address rather
// than a host id.
func LooksLikeAddress(s string) bool {
	return strings.ContainsAny(s, ".:")
}

// ParseHostAddress parses "10.0.0.1", "10.0.0.0/24", "10.0.0.0/255.255.255.0"
// and "fd00::1/64". An IPv4 prefix length is converted to a netmask.
func ParseHostAddress(s string) (HostAddress, error) {
	addrPart, suffix, hasSuffix := strings.Cut(strings.TrimSpace(s), "/")

	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return HostAddress{}, fmt.Errorf("invalid host address %q: %w", s, err)
	}
	out := HostAddress{Address: addr.String()}
	if !hasSuffix {
		return out, nil
	}

	if addr.Is4() && strings.Contains(suffix, ".") {
		mask, err := netip.ParseAddr(suffix)
		if err != nil || !mask.Is4() {
			return HostAddress{}, fmt.Errorf("invalid netmask %q", suffix)
		}
		out.Netmask = mask.String()
		return out, nil
	}

	bits, err := strconv.Atoi(suffix)
	if err != nil || bits < 0 || bits > addr.BitLen() {
		return HostAddress{}, fmt.Errorf("invalid prefix length %q for %s", suffix, addr)
	}
	if addr.Is4() {
		out.Netmask = netmaskFromBits(bits)
		return out, nil
	}
	out.PrefixLength = bits
	return out, nil
}

func netmaskFromBits(bits int) string {
	var m uint32
	if bits > 0 {
		m = ^uint32(0) << (32 - bits)
	}
	return netip.AddrFrom4([4]byte{byte(m >> 24), byte(m >> 16), byte(m >> 8), byte(m)}).String()
}

var fcUID = regexp.MustCompile(`^([0-9a-fA-F]{2}:){15}[0-9a-fA-F]{2}$|^([0-9a-fA-F]{2}:){7}[0-9a-fA-F]{2}$|^[0-9a-fA-F]{16}$|^[0-9a-fA-F]{32}$`)

// IsFCUID reports whether uid is a Fibre Channel WWN or WWNN:WWPN pair.
func IsFCUID(uid string) bool {
	return fcUID.MatchString(uid)
}

// IsISCSIUID reports whether uid is an iSCSI qualified name.
func IsISCSIUID(uid string) bool {
	lower := strings.ToLower(uid)
	return strings.HasPrefix(lower, "iqn.") || strings.HasPrefix(lower, "eui.") || strings.HasPrefix(lower, "naa.")
}
