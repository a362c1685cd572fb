package domain

// City is a tenant site configuration selected by request hostname.
type City struct {
	Host             string   `json:"host" yaml:"host"`
	City             string   `json:"city" yaml:"city"`
	State            string   `json:"state" yaml:"state"`
	Lat              float64  `json:"lat" yaml:"lat"`
	Lon              float64  `json:"lon" yaml:"lon"`
	HeroImage        string   `json:"heroImage,omitempty" yaml:"hero_image"`
	Tagline          string   `json:"tagline,omitempty" yaml:"tagline"`
	RSSQueries       []string `json:"rssQueries,omitempty" yaml:"rss_queries"`
	EventRadiusMiles int      `json:"eventRadiusMiles,omitempty" yaml:"event_radius_miles"`
	EventbriteTerms  []string `json:"eventbriteTerms,omitempty" yaml:"eventbrite_terms"`
	TicketmasterDMA  string   `json:"ticketmasterDMA,omitempty" yaml:"ticketmaster_dma"`
	ICSFeeds         []string `json:"icsFeeds,omitempty" yaml:"ics_feeds"`
}

// Label returns the "City, ST" display form.
func (c City) Label() string {
	if c.State == "" {
		return c.City
	}
	return c.City + ", " + c.State
}

// CityRef is the short city block embedded in news and weather responses.
type CityRef struct {
	City  string   `json:"city"`
	State string   `json:"state"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

// Ref returns the short reference form of c without coordinates.
func (c City) Ref() CityRef {
	return CityRef{City: c.City, State: c.State}
}

// CityResolver maps an inbound hostname to a tenant.
type CityResolver interface {
	Resolve(host string) City
	All() []City
}
