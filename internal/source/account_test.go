package source

import "testing"

func TestTruncateAccount(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Shop NL (123-456-7890)", "Shop NL"},
		{"Shop NL", "Shop NL"},
		{"  fietsen.nl (42)  ", "fietsen.nl"},
		{"(only id)", ""},
		{"Brand (EU) Store", "Brand (EU) Store"},
	}
	for _, tt := range tests {
		if got := TruncateAccount(tt.in); got != tt.want {
			t.Errorf("TruncateAccount(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecomposeAccount(t *testing.T) {
	brands := []BrandRule{
		{Match: "velomarkt", Domain: "velomarkt.de", Language: "de"},
		{Match: "Cyclestore", Domain: "cyclestore.co.uk"},
	}
	tests := []struct {
		in   string
		want AccountParts
	}{
		{"Velomarkt Search (111)", AccountParts{"Velomarkt Search", "velomarkt.de", "DE"}},
		{"CYCLESTORE - en", AccountParts{"CYCLESTORE - en", "cyclestore.co.uk", "EN"}},
		{"Cyclestore main", AccountParts{"Cyclestore main", "cyclestore.co.uk", ""}},
		{"fietsenwinkel.nl - nl (222-333)", AccountParts{"fietsenwinkel.nl - nl", "fietsenwinkel.nl", "NL"}},
		{"bikeshop.be", AccountParts{"bikeshop.be", "bikeshop.be", "BE"}},
		// The separator rule wins over a country-code suffix.
		{"Brand - shop.de", AccountParts{"Brand - shop.de", "Brand", "SHOP.DE"}},
		{"Generic Account", AccountParts{"Generic Account", "Generic Account", ""}},
		{"", AccountParts{}},
	}
	for _, tt := range tests {
		if got := DecomposeAccount(tt.in, brands); got != tt.want {
			t.Errorf("DecomposeAccount(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
