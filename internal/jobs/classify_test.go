package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		requested Profile
		want      Profile
	}{
		{"default with IP literal stays network", "192.0.2.10", ProfileDefault, ProfileDefault},
		{"default with hostname becomes web", "example.com", ProfileDefault, ProfileWeb},
		{"default with URL becomes web", "https://example.com/login", ProfileDefault, ProfileWeb},
		{"default with http URL becomes web", "http://192.0.2.10", ProfileDefault, ProfileWeb},
		{"explicit full is untouched for hostname", "example.com", ProfileFull, ProfileFull},
		{"explicit web is untouched for IP", "192.0.2.10", ProfileWeb, ProfileWeb},
		{"IPv6 literal stays network", "2001:db8::1", ProfileDefault, ProfileDefault},
		{"host with port keeps network for IP", "192.0.2.10:8080", ProfileDefault, ProfileDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.target, tt.requested))
		})
	}
}
