package session

import (
	"time"

	"github.com/MrEthical07/shelfauth/identity"
)

// Session is the token pair handed to a client after login or refresh.
type Session struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Principal        identity.Principal
}
