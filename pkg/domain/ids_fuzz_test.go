package domain

import (
	"testing"
)

// FuzzParseDonationID checks that parsing never panics and only ever yields
// positive ids.
func FuzzParseDonationID(f *testing.F) {
	for _, seed := range []string{"", "1", "0", "-1", "9223372036854775807", "9223372036854775808", " 7 ", "1e3", "0x10"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		id, err := ParseDonationID(s)
		if err == nil && id <= 0 {
			t.Fatalf("parsed non-positive id %d from %q", id, s)
		}
	})
}
