// Package identity reads the locally persisted user identity consumed at
// session start. The identity is written by the sign-in flow elsewhere in
// the app; this package never mutates it.
package identity

import (
	"errors"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
	pkgconfig "github.com/BrunoPereyra/nexo-vecinal-sub000/pkg/config"
)

var ErrNotSignedIn = errors.New("no local identity found")

// Load reads identity.yaml from path (environment variables override,
// prefixed keys IDENTITY_ID, IDENTITY_DISPLAY_NAME, IDENTITY_AVATAR).
func Load(path string) (domain.Identity, error) {
	v, err := pkgconfig.Load(path, "identity")
	if err != nil {
		return domain.Identity{}, err
	}

	v.BindEnv("identity.id", "IDENTITY_ID")
	v.BindEnv("identity.display_name", "IDENTITY_DISPLAY_NAME")
	v.BindEnv("identity.avatar", "IDENTITY_AVATAR")

	var id domain.Identity
	if err := v.UnmarshalKey("identity", &id); err != nil {
		return domain.Identity{}, err
	}

	if id.ID == "" {
		return domain.Identity{}, ErrNotSignedIn
	}
	return id, nil
}
