package core

type SourceAuthType string

const (
	SourceAuthTypeUnknown SourceAuthType = ""
	SourceAuthTypeAPIKey  SourceAuthType = "api_key"
	SourceAuthTypeOAuth   SourceAuthType = "oauth"
	SourceAuthTypeCLI     SourceAuthType = "cli"
	SourceAuthTypeLocal   SourceAuthType = "local"
)

// SourceAuthSpec defines how a source authenticates and how users configure it.
type SourceAuthSpec struct {
	Type      SourceAuthType
	APIKeyEnv string
}

// SourceSpec is the canonical source definition used for registration.
type SourceSpec struct {
	ID   string
	Info SourceInfo
	Auth SourceAuthSpec
}
