package model

import "time"

// Credential provider keys recognized by the credential store.
const (
	CredElevenLabsAPIKey = "elevenlabs_api_key"
	CredVisionAPIKey     = "vision_api_key"
	CredScrapeEmail      = "scrape_email"
	CredScrapePassword   = "scrape_password"
	CredDefaultVoiceID   = "default_voice_id"
)

// RecognizedCredentials lists the provider keys a credential update may set.
var RecognizedCredentials = []string{
	CredElevenLabsAPIKey,
	CredVisionAPIKey,
	CredScrapeEmail,
	CredScrapePassword,
	CredDefaultVoiceID,
}

// User holds an account plus its stored third-party credentials.
type User struct {
	ID           string            `json:"user_id"`
	Username     string            `json:"username"`
	PasswordHash string            `json:"password_hash"`
	Credentials  map[string]string `json:"credentials"`
	CreatedAt    time.Time         `json:"created_at"`
	LastLogin    time.Time         `json:"last_login"`
}

// Credential returns the stored secret for a provider key, empty if unset.
func (u *User) Credential(key string) string {
	if u.Credentials == nil {
		return ""
	}
	return u.Credentials[key]
}
