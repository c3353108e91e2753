// Package dir defines the directory authorities of the network.
package dir

import (
	"strings"

	"github.com/erans/gonionoo"
	"github.com/pkg/errors"
)

// Authority identifies a directory authority by name, identity fingerprint
// and directory address.
type Authority struct {
	Name        string
	Fingerprint string
	Address     string
}

// URL returns the base URL of the authority's directory port.
func (a Authority) URL() string {
	return "http://" + a.Address
}

// Authorities is the set of known directory authorities. This is unlikely to
// change often, but can be refreshed with DiscoverAuthorities(). Listed at
// https://atlas.torproject.org/#search/flag:authority.
var Authorities = []Authority{
	{"moria1", "D586D18309DED4CD6D57C18FDB97EFA96D330566", "128.31.0.34:9131"},
	{"tor26", "14C131DFC5C6F93646BE72FA1401C02A8DF2E8B4", "86.59.21.38:80"},
	{"dizum", "E8A9C45EDE6D711294FADF8E7951F4DE6CA56B58", "194.109.206.212:80"},
	{"gabelmoo", "ED03BB616EB2F60BEC80151114BB25CEF515B226", "131.188.40.189:80"},
	{"dannenberg", "0232AF901C31A04EE9848595AF9BB7620D4C5B2E", "193.23.244.244:80"},
	{"maatuska", "49015F787433103580E3B66A1707A00E60F2D15B", "171.25.193.9:443"},
	{"longclaw", "23D15D965BC35114467363C165C4F724B64B4F66", "199.58.81.140:80"},
	{"bastet", "27102BC123E7AF1D4741AE047E160C91ADC76B21", "204.13.164.118:80"},
	{"faravahar", "EFCBE720AB3A82B99F9E953CD5BF50F7EEFC7B97", "154.35.175.225:80"},
}

// Lookup finds an authority by name.
func Lookup(name string) (Authority, bool) {
	for _, a := range Authorities {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Authority{}, false
}

// ByFingerprint finds an authority by identity fingerprint.
func ByFingerprint(fingerprint string) (Authority, bool) {
	for _, a := range Authorities {
		if strings.EqualFold(a.Fingerprint, fingerprint) {
			return a, true
		}
	}
	return Authority{}, false
}

// Names returns the names of the given authorities.
func Names(authorities []Authority) []string {
	names := make([]string, len(authorities))
	for i, a := range authorities {
		names[i] = a.Name
	}
	return names
}

// DiscoverAuthorities queries the onionoo API for relays carrying the
// Authority flag and returns the discovered authority set. Relays without a
// directory address are skipped.
func DiscoverAuthorities() ([]Authority, error) {
	query := map[string]string{
		"flag": "authority",
	}

	details, _, err := gonionoo.GetDetails(query, "")
	if err != nil {
		return nil, errors.Wrap(err, "onionoo authority query failed")
	}

	authorities := make([]Authority, 0, len(details.Relays))
	for _, relay := range details.Relays {
		if relay.DirAddress == "" {
			continue
		}
		authorities = append(authorities, Authority{
			Name:        relay.Nickname,
			Fingerprint: relay.Fingerprint,
			Address:     relay.DirAddress,
		})
	}

	return authorities, nil
}
