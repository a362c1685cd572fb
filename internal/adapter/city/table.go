package city

import "localhub/internal/domain"

const unsplash = "?q=80&w=1600&auto=format&fit=crop"

func tagline(city string) string {
	return "Your Local Hub — News & Events in " + city
}

// DefaultTable is the built-in tenant list. The first entry is the fallback
// for unknown hosts.
func DefaultTable() []domain.City {
	return []domain.City{
		{
			Host:      "saltlakeut.com",
			City:      "Salt Lake City",
			State:     "UT",
			Lat:       40.7608,
			Lon:       -111.8910,
			HeroImage: "https://images.unsplash.com/photo-1466285746891-30d1cd3a5400" + unsplash,
			Tagline:   tagline("Salt Lake City"),
			RSSQueries: []string{
				`"Salt Lake City" Utah news -Hawaii -HI -Maui -Kahului`,
				`"Salt Lake County" news -Hawaii -HI -Maui -Kahului`,
				`"Salt Lake City" local news -Hawaii -HI -Maui -Kahului`,
			},
			EventRadiusMiles: 25,
			EventbriteTerms:  []string{"Salt Lake City", "SLC", "Salt Lake County"},
			TicketmasterDMA:  "Salt Lake City",
			ICSFeeds: []string{
				"https://msd.utah.gov/common/modules/iCalendar/iCalendar.aspx?catID=14&feed=calendar",
			},
		},
		{
			Host:             "fresnoca.org",
			City:             "Fresno",
			State:            "CA",
			Lat:              36.7378,
			Lon:              -119.7871,
			HeroImage:        "https://images.unsplash.com/photo-1600210492486-724fe5c67fb2" + unsplash,
			Tagline:          tagline("Fresno"),
			RSSQueries:       []string{`"Fresno" California news`, `"Fresno County" news`},
			EventRadiusMiles: 25,
			EventbriteTerms:  []string{"Fresno", "Fresno County"},
			TicketmasterDMA:  "Fresno",
		},
		{
			Host:             "indioca.com",
			City:             "Indio",
			State:            "CA",
			Lat:              33.7206,
			Lon:              -116.2156,
			HeroImage:        "https://images.unsplash.com/photo-1519681393784-d120267933ba" + unsplash,
			Tagline:          tagline("Indio"),
			RSSQueries:       []string{`"Indio" California news`, `"Coachella Valley" news`},
			EventRadiusMiles: 25,
			EventbriteTerms:  []string{"Indio", "Coachella Valley"},
			TicketmasterDMA:  "Palm Springs",
		},
		{
			Host:             "perrisca.com",
			City:             "Perris",
			State:            "CA",
			Lat:              33.7825,
			Lon:              -117.2286,
			HeroImage:        "https://images.unsplash.com/photo-1519681393784-d120267933ba" + unsplash,
			Tagline:          tagline("Perris"),
			RSSQueries:       []string{`"Perris" California news`, `"Riverside County" breaking news`},
			EventRadiusMiles: 25,
			EventbriteTerms:  []string{"Perris", "Riverside County"},
			TicketmasterDMA:  "Los Angeles",
		},
		{
			Host:             "caycesc.com",
			City:             "Cayce",
			State:            "SC",
			Lat:              33.9654,
			Lon:              -81.0734,
			HeroImage:        "https://images.unsplash.com/photo-1520975922299-84c42f4e1f8a" + unsplash,
			Tagline:          tagline("Cayce"),
			RSSQueries:       []string{`"Cayce" South Carolina news`, `"Lexington County" SC news`},
			EventRadiusMiles: 20,
			EventbriteTerms:  []string{"Cayce", "Columbia SC", "Lexington County"},
			TicketmasterDMA:  "Columbia",
		},
		{
			Host:             "irmosc.com",
			City:             "Irmo",
			State:            "SC",
			Lat:              34.0854,
			Lon:              -81.1832,
			HeroImage:        "https://images.unsplash.com/photo-1587613754436-514c2c0563a1" + unsplash,
			Tagline:          tagline("Irmo"),
			RSSQueries:       []string{`"Irmo" South Carolina news`, `"Lexington County" SC news`},
			EventRadiusMiles: 20,
			EventbriteTerms:  []string{"Irmo", "Columbia SC", "Lexington County"},
			TicketmasterDMA:  "Columbia",
		},
		{
			Host:             "elizabethnc.com",
			City:             "Elizabeth City",
			State:            "NC",
			Lat:              36.2946,
			Lon:              -76.2510,
			HeroImage:        "https://images.unsplash.com/photo-1520975922299-84c42f4e1f8a" + unsplash,
			Tagline:          tagline("Elizabeth City"),
			RSSQueries:       []string{`"Elizabeth City" North Carolina news`, `"Pasquotank County" news`},
			EventRadiusMiles: 20,
			EventbriteTerms:  []string{"Elizabeth City", "Pasquotank County"},
			TicketmasterDMA:  "Norfolk",
		},
		{
			Host:             "kahuluihi.com",
			City:             "Kahului",
			State:            "HI",
			Lat:              20.8890,
			Lon:              -156.4729,
			HeroImage:        "https://images.unsplash.com/photo-1535321834298-0c6df5874656" + unsplash,
			Tagline:          tagline("Kahului"),
			RSSQueries:       []string{`"Kahului" Maui news`, `"Maui County" news`},
			EventRadiusMiles: 25,
			EventbriteTerms:  []string{"Kahului", "Maui"},
			TicketmasterDMA:  "Honolulu",
		},
	}
}
