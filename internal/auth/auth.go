// Package auth formats Authorization header values.
package auth

import "encoding/base64"

// Header is the canonical Authorization header name.
const Header = "Authorization"

// BasicAuth returns "Basic " followed by base64(username:password).
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// BearerAuth returns "Bearer <token>".
func BearerAuth(token string) string {
	return "Bearer " + token
}
