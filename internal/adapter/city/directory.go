package city

import (
	"errors"
	"strings"

	"localhub/internal/domain"
)

// Directory resolves request hostnames to tenant cities. It is immutable
// after construction and safe for concurrent use.
type Directory struct {
	cities []domain.City
}

// New builds a Directory from cities, or from DefaultTable when cities is empty.
func New(cities []domain.City) (*Directory, error) {
	if len(cities) == 0 {
		cities = DefaultTable()
	}
	out := make([]domain.City, 0, len(cities))
	for _, c := range cities {
		c.Host = strings.ToLower(strings.TrimSpace(c.Host))
		if c.Host == "" {
			return nil, errors.New("city directory: entry with empty host")
		}
		out = append(out, c)
	}
	return &Directory{cities: out}, nil
}

// Resolve returns the first city whose host appears in hostname (port
// stripped, case-insensitive), or the first city when none matches.
func (d *Directory) Resolve(hostname string) domain.City {
	host, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(hostname)), ":")
	if host != "" {
		for _, c := range d.cities {
			if strings.Contains(host, c.Host) {
				return c
			}
		}
	}
	return d.cities[0]
}

// All returns a copy of the table in order.
func (d *Directory) All() []domain.City {
	out := make([]domain.City, len(d.cities))
	copy(out, d.cities)
	return out
}

var _ domain.CityResolver = (*Directory)(nil)
