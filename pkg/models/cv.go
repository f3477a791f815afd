package models

import "time"

type CVDocument struct {
	Content      string    `json:"content"`
	LastModified time.Time `json:"lastModified"`
	Path         string    `json:"path"`
}

type CVVersion struct {
	Filename string    `json:"filename"`
	Created  time.Time `json:"created"`
	Size     int64     `json:"size"`
}

type CVSaveResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Backup    string `json:"backup,omitempty"`
}

// MediaFile is an uploaded image.
type MediaFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"` // path for use in markdown
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// Session is an authenticated admin login.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}
