package jellyfin

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Identity describes this client to the server. Jellyfin tracks sessions per device id.
type Identity struct {
	Client   string
	Device   string
	DeviceID string
	Version  string
}

// DeviceID returns a device id that is stable for this host and client name,
// so repeated runs reuse the same server-side device entry.
func DeviceID(client string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.New().String()
	}

	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(host+"/"+client)).String()
}

func (i Identity) withDefaults() Identity {
	if i.Client == "" {
		i.Client = "jellyfin_downloader"
	}

	if i.Device == "" {
		i.Device = "cli"
	}

	if i.DeviceID == "" {
		i.DeviceID = DeviceID(i.Client)
	}

	if i.Version == "" {
		i.Version = "1.0.0"
	}

	return i
}

// params renders the MediaBrowser authorization parameters, optionally with the session token.
func (i Identity) params(token string) string {
	p := fmt.Sprintf(`Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		quote(i.Client), quote(i.Device), quote(i.DeviceID), quote(i.Version))

	if token != "" {
		p += fmt.Sprintf(`, Token="%s"`, quote(token))
	}

	return p
}

func quote(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
