package dir

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrNoAuthorities is returned when an authorities file contains no entries.
var ErrNoAuthorities = errors.New("no authorities defined")

type authoritiesFile struct {
	Authorities []struct {
		Name        string `yaml:"name"`
		Fingerprint string `yaml:"fingerprint"`
		Address     string `yaml:"address"`
	} `yaml:"authorities"`
}

// LoadAuthoritiesFile reads an authority table override from a YAML file of
// the form:
//
//	authorities:
//	  - name: moria1
//	    fingerprint: D586D18309DED4CD6D57C18FDB97EFA96D330566
//	    address: 128.31.0.34:9131
func LoadAuthoritiesFile(path string) ([]Authority, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read authorities file")
	}

	var f authoritiesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse authorities file")
	}

	if len(f.Authorities) == 0 {
		return nil, ErrNoAuthorities
	}

	authorities := make([]Authority, len(f.Authorities))
	for i, a := range f.Authorities {
		authorities[i] = Authority{
			Name:        a.Name,
			Fingerprint: a.Fingerprint,
			Address:     a.Address,
		}
	}

	return authorities, nil
}
