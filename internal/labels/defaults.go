package labels

// DefaultRules is the static rule table used when the config names none.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "10.", Label: "private (10/8)"},
		{Pattern: "192.168.", Label: "private (192.168/16)"},
		{Pattern: "172.16.", Label: "private (172.16/12)"},
		{Pattern: "172.17.", Label: "docker bridge"},
		{Pattern: "169.254.169.254", Label: "cloud metadata"},
		{Pattern: "169.254.", Label: "link-local"},
		{Pattern: "100.64.", Label: "CGNAT"},
		{Pattern: "1.1.1.1", Label: "cloudflare dns"},
		{Pattern: "1.0.0.1", Label: "cloudflare dns"},
		{Pattern: "8.8.8.8", Label: "google dns"},
		{Pattern: "8.8.4.4", Label: "google dns"},
		{Pattern: "9.9.9.9", Label: "quad9 dns"},
		{Pattern: "[fe80:", Label: "link-local"},
		{Pattern: "[fd", Label: "ipv6 ula"},
	}
}

// DefaultHostnames are resolved at startup into exact-address rules, so
// traffic to common code and package hosts is named even without a config.
func DefaultHostnames() []string {
	return []string{
		"github.com",
		"api.github.com",
		"proxy.golang.org",
		"registry-1.docker.io",
		"pypi.org",
	}
}
