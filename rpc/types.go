// Package rpc contains the structures exchanged with a Socialvoid server and
// the classification of the errors it reports.
package rpc

// Remote method names used by this client.
const (
	MethodSessionCreate           = "session.create"
	MethodSessionGet              = "session.get"
	MethodSessionAuthenticateUser = "session.authenticate_user"
	MethodSessionLogout           = "session.logout"
	MethodSessionRegister         = "session.register"

	MethodHelpGetTermsOfService      = "help.get_terms_of_service"
	MethodHelpGetPrivacyPolicy       = "help.get_privacy_policy"
	MethodHelpGetCommunityGuidelines = "help.get_community_guidelines"
	MethodHelpGetServerInformation   = "help.get_server_information"
)

// SessionIdentification proves both the client and the session identity.
// It is sent on every request that acts within a session and must be
// computed fresh each time since the challenge answer is time based.
type SessionIdentification struct {
	SessionID        string `json:"session_id"`
	ClientPublicHash string `json:"client_public_hash"`
	ChallengeAnswer  string `json:"challenge_answer"`
}

// SessionEstablished is the result of session.create.
type SessionEstablished struct {
	ID        string `json:"id"`
	Challenge string `json:"challenge"`
}

// Session is the public view of a session returned by session.get.
type Session struct {
	ID            string   `json:"id"`
	Flags         []string `json:"flags"`
	Authenticated bool     `json:"authenticated"`
	Created       int64    `json:"created"`
	Expires       int64    `json:"expires"`
}

// CreateSessionParams are the params of session.create.
type CreateSessionParams struct {
	PublicHash  string `json:"public_hash"`
	PrivateHash string `json:"private_hash"`
	Platform    string `json:"platform"`
	Name        string `json:"name"`
	Version     string `json:"version"`
}

// SessionParams are the params of methods that only take the session
// identification.
type SessionParams struct {
	SessionIdentification SessionIdentification `json:"session_identification"`
}

// AuthenticateUserParams are the params of session.authenticate_user.
type AuthenticateUserParams struct {
	SessionIdentification SessionIdentification `json:"session_identification"`
	Username              string                `json:"username"`
	Password              string                `json:"password"`
	OTP                   *string               `json:"otp"`
}

// RegisterParams are the params of session.register.
type RegisterParams struct {
	SessionIdentification SessionIdentification `json:"session_identification"`
	TermsOfServiceID      string                `json:"terms_of_service_id"`
	TermsOfServiceAgree   bool                  `json:"terms_of_service_agree"`
	Username              string                `json:"username"`
	Password              string                `json:"password"`
	FirstName             string                `json:"first_name"`
	LastName              *string               `json:"last_name"`
}

// PeerType is the type of a peer.
type PeerType string

const (
	PeerTypeUser  PeerType = "USER"
	PeerTypeBot   PeerType = "BOT"
	PeerTypeProxy PeerType = "PROXY"
)

// Peer is a user or bot of the network.
type Peer struct {
	ID       string   `json:"id"`
	Type     PeerType `json:"type"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Flags    []string `json:"flags"`
}

// FileType is the type of a CDN document.
type FileType string

const (
	FileTypeDocument FileType = "DOCUMENT"
	FileTypePhoto    FileType = "PHOTO"
	FileTypeVideo    FileType = "VIDEO"
	FileTypeAudio    FileType = "AUDIO"
)

// Document describes a file stored on the CDN.
type Document struct {
	ID       string   `json:"id"`
	FileMime string   `json:"file_mime"`
	FileName string   `json:"file_name"`
	FileSize int64    `json:"file_size"`
	FileType FileType `json:"file_type"`
	Flags    []string `json:"flags"`
}

// TextEntity marks a formatted span of a text.
type TextEntity struct {
	Type   string  `json:"type"`
	Offset int     `json:"offset"`
	Length int     `json:"length"`
	Value  *string `json:"value"`
}

// HelpDocument is a server provided document such as the terms of service.
type HelpDocument struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Entities []TextEntity `json:"entities"`
}

// ServerInformation describes the server and its limits.
type ServerInformation struct {
	NetworkName               string `json:"network_name"`
	ProtocolVersion           string `json:"protocol_version"`
	CDNServer                 string `json:"cdn_server"`
	UploadMaxFileSize         int64  `json:"upload_max_file_size"`
	UnauthorizedSessionTTL    int64  `json:"unauthorized_session_ttl"`
	AuthorizedSessionTTL      int64  `json:"authorized_session_ttl"`
	RetrieveLikesMaxLimit     int    `json:"retrieve_likes_max_limit"`
	RetrieveRepostsMaxLimit   int    `json:"retrieve_reposts_max_limit"`
	RetrieveRepliesMaxLimit   int    `json:"retrieve_replies_max_limit"`
	RetrieveQuotesMaxLimit    int    `json:"retrieve_quotes_max_limit"`
	RetrieveFollowersMaxLimit int    `json:"retrieve_followers_max_limit"`
	RetrieveFollowingMaxLimit int    `json:"retrieve_following_max_limit"`
	RetrieveFeedMaxLimit      int    `json:"retrieve_feed_max_limit"`
}
