package validate

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lng  float64
		want bool
	}{
		{"denver", 39.74, -104.99, true},
		{"miami near south edge", 25.76, -80.19, true},
		{"seattle near north edge", 47.61, -122.33, true},
		{"boundary corners", 24, -130, true},
		{"boundary corners high", 50, -65, true},
		{"anchorage outside box", 61.2, -149.9, false},
		{"honolulu outside box", 21.3, -157.86, false},
		{"london wrong hemisphere", 51.5, -0.12, false},
		{"zero value pair", 0, 0, false},
		{"nan latitude", math.NaN(), -100, false},
		{"nan longitude", 40, math.NaN(), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidCoordinates(tc.lat, tc.lng))
		})
	}
}

func TestValidCoordinatePair(t *testing.T) {
	lat := 39.74
	lng := -104.99

	assert.True(t, ValidCoordinatePair(&lat, &lng))
	assert.False(t, ValidCoordinatePair(nil, &lng))
	assert.False(t, ValidCoordinatePair(&lat, nil))
	assert.False(t, ValidCoordinatePair(nil, nil))
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"contact@example.org", true},
		{"volunteer.services+intake@hospital.co.uk", true},
		{"not-an-email", false},
		{"", false},
		{"@example.org", false},
		{"contact@", false},
		{"contact@example", false},
		{"two@at@example.org", false},
		{strings.Repeat("a", 250) + "@x.org", false}, // over 254 chars
	}

	for _, tc := range tests {
		t.Run(tc.email, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidEmail(tc.email))
		})
	}
}

func TestEmailMatchesSite(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		website string
		want    bool
	}{
		{"exact domain", "info@example.org", "https://example.org", true},
		{"subdomain of site", "info@sub.example.org", "https://example.org", true},
		{"www on site side ignored", "info@example.org", "https://www.example.org", true},
		{"third-party domain", "a@other.com", "https://example.org", false},
		{"suffix but not subdomain", "a@notexample.org", "https://example.org", false},
		{"no at sign", "example.org", "https://example.org", false},
		{"unparseable website", "info@example.org", "://bad", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EmailMatchesSite(tc.email, tc.website))
		})
	}
}

func TestHostMatchesName(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		facility string
		want     bool
	}{
		{"slugged name", "sunriseclinic.org", "Sunrise Clinic", true},
		{"single word", "mercyhospital.com", "Mercy General Hospital", true},
		{"short words only", "abc.org", "A B C", false},
		{"unrelated host", "squarespace.com", "Sunrise Clinic", false},
		{"case insensitive", "SUNRISEclinic.org", "sunrise clinic", true},
		{"empty host", "", "Sunrise Clinic", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HostMatchesName(tc.host, tc.facility))
		})
	}
}

func TestNameSlug(t *testing.T) {
	assert.Equal(t, "sunriseclinic", NameSlug("Sunrise Clinic", 30))
	assert.Equal(t, "stjudeschildrens", NameSlug("St. Jude's Children's", 30))
	assert.Equal(t, "sunrise", NameSlug("Sunrise Clinic", 7))
	assert.Equal(t, "", NameSlug("!!!", 30))
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.org", HostOf("https://www.example.org/path"))
	assert.Equal(t, "sub.example.org", HostOf("https://sub.example.org"))
	assert.Equal(t, "", HostOf("://bad"))
}
