package model

import "time"

// FetchJob asks the fetch worker to refresh a user's class aggregate.
type FetchJob struct {
	Token       string    `json:"token"`
	ClassIndex  int       `json:"class_index"`
	RequestedAt time.Time `json:"requested_at"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type StatsReport struct {
	Token      string `json:"token" binding:"required"`
	Platform   string `json:"platform"`
	Device     string `json:"device"`
	Language   string `json:"language"`
	Resolution string `json:"resolution"`
}

// SettingsUpdate carries optional preference changes; nil fields are left
// untouched.
type SettingsUpdate struct {
	Notifications  *bool   `json:"notifications"`
	LeadDays       *int    `json:"lead_days"`
	Theme          *string `json:"theme"`
	DataCollection *bool   `json:"data_collection"`
	Ads            *bool   `json:"ads"`
	Language       *string `json:"language"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
