package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientRenewalBody(t *testing.T) {
	body := clientRenewalBody("https://vpn.example.com", "alice", "tok+1/2")

	assert.Contains(t, body,
		"https://vpn.example.com/redeem_client_config.html?clientName=alice&token=tok%2B1%2F2")
	assert.Contains(t, body, "for alice")
	assert.Contains(t, body, "use the following url once")
}

func TestServerRenewalBody(t *testing.T) {
	body := serverRenewalBody("https://vpn.example.com", "tok-abc")

	// The server bundle redeems at the server endpoint, not through the
	// client redemption page.
	assert.Contains(t, body, "https://vpn.example.com/server/config")
	assert.Contains(t, body, "<pre>tok-abc</pre>")
	assert.NotContains(t, body, "redeem_client_config.html")
}
