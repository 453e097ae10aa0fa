// Package common contains shared constants and sentinel errors used across
// the authentication service components.
package common

// AuthorizationHeaderName is the HTTP header carrying the session token on
// authenticated requests.
const AuthorizationHeaderName = "Authorization"

// DefaultAvatarURL is assigned to accounts registered without an avatar.
const DefaultAvatarURL = "https://objetivoligar.com/wp-content/uploads/2017/03/blank-profile-picture-973460_1280-768x768.jpg"
