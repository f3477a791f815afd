package models

// Job is a saved job listing, either scraped from a job board or entered by
// hand.
type Job struct {
	ID          string   `json:"id,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    *string  `json:"location"`
	URL         string   `json:"url"`
	SalaryRange *string  `json:"salary_range"`
	Description *string  `json:"description"`
	Source      string   `json:"source"`
	Status      string   `json:"status,omitempty"`
	AppliedDate string   `json:"applied_date,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags"`
}
