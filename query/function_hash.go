package query

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"net/netip"
	"strings"
)

// Hash and Network Functions

// HashFunc computes a hex digest of the string form of its argument
type HashFunc struct {
	name string
}

func (f *HashFunc) Name() string  { return f.name }
func (f *HashFunc) MinArity() int { return 1 }
func (f *HashFunc) MaxArity() int { return 1 }
func (f *HashFunc) Evaluate(args []interface{}) (interface{}, error) {
	if args[0] == nil {
		return nil, nil
	}
	var h hash.Hash
	switch f.name {
	case "md5":
		h = md5.New()
	case "sha1":
		h = sha1.New()
	case "sha256":
		h = sha256.New()
	case "sha512":
		h = sha512.New()
	default:
		return nil, fmt.Errorf("%s: unsupported digest", f.name)
	}
	h.Write([]byte(valueToString(args[0])))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CIDRMatchFunc reports whether an IP address lies in a subnet:
// cidrmatch(cidr, ip)
type CIDRMatchFunc struct{}

func (f *CIDRMatchFunc) Name() string  { return "cidrmatch" }
func (f *CIDRMatchFunc) MinArity() int { return 2 }
func (f *CIDRMatchFunc) MaxArity() int { return 2 }
func (f *CIDRMatchFunc) Evaluate(args []interface{}) (interface{}, error) {
	cidr := strings.TrimSpace(valueToString(args[0]))
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, NewInvalidArgumentError("cidrmatch", fmt.Sprintf("invalid CIDR %q", cidr))
	}
	if args[1] == nil {
		return false, nil
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(valueToString(args[1])))
	if err != nil {
		return false, nil
	}
	return prefix.Contains(addr.Unmap()), nil
}
