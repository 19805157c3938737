package token

import "github.com/golang-jwt/jwt"

// Claims is the full claim set carried by an access token. DeviceID binds
// the token to the device fingerprint presented when it was issued.
type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.StandardClaims
}
