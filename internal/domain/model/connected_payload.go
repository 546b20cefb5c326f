package model

// ConnectedPayload represents the data sent to the client upon successful connection.
type ConnectedPayload struct {
	Ok            bool     `json:"ok"`
	ConnectionID  string   `json:"connection_id"`
	UserID        string   `json:"user_id"`
	ServerVersion string   `json:"server_version"`
	OnlineUsers   []string `json:"online_users"`
}
