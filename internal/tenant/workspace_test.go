package tenant

import "testing"

func TestResolveWorkspace_Hosts(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"customer subdomain", "acme.fleetdesk.io", "acme"},
		{"subdomain with port", "acme.fleetdesk.io:8080", "acme"},
		{"uppercase host", "ACME.FleetDesk.IO", "acme"},
		{"trailing dot", "acme.fleetdesk.io.", "acme"},
		{"bare apex", "fleetdesk.io", ""},
		{"single label", "fleetdesk", ""},
		{"localhost", "localhost", ""},
		{"localhost with port", "localhost:3000", ""},
		{"loopback ip", "127.0.0.1", ""},
		{"loopback ip with port", "127.0.0.1:8080", ""},
		{"ipv6 loopback", "::1", ""},
		{"reserved www", "www.fleetdesk.io", ""},
		{"reserved app", "app.fleetdesk.io", ""},
		{"reserved admin", "admin.fleetdesk.io", ""},
		{"reserved api", "api.fleetdesk.io", ""},
		{"deep subdomain", "acme.eu.fleetdesk.io", "acme"},
		{"vercel deployment with workspace", "acme.fleetdesk.vercel.app", "acme"},
		{"vercel deployment without workspace", "fleetdesk.vercel.app", ""},
		{"netlify deployment without workspace", "fleetdesk.netlify.app", ""},
		{"netlify deployment with workspace", "acme.fleetdesk.netlify.app", "acme"},
		{"fly deployment without workspace", "fleetdesk.fly.dev", ""},
		{"render deployment with workspace", "acme.fleetdesk.onrender.com", "acme"},
		{"empty host", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveWorkspace(tt.host, "")
			if got != tt.want {
				t.Errorf("ResolveWorkspace(%q, \"\") = %q, want %q", tt.host, got, tt.want)
			}
		})
	}
}

func TestResolveWorkspace_ExplicitWins(t *testing.T) {
	// An explicit parameter overrides whatever the host says, including
	// reserved and unresolvable hosts.
	tests := []struct {
		host     string
		explicit string
		want     string
	}{
		{"localhost:3000", "acme", "acme"},
		{"www.fleetdesk.io", "acme", "acme"},
		{"other.fleetdesk.io", "acme", "acme"},
		{"acme.fleetdesk.io", "  Globex  ", "globex"},
	}

	for _, tt := range tests {
		got := ResolveWorkspace(tt.host, tt.explicit)
		if got != tt.want {
			t.Errorf("ResolveWorkspace(%q, %q) = %q, want %q", tt.host, tt.explicit, got, tt.want)
		}
	}
}
