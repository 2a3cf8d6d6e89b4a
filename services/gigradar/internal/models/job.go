package models

import (
	"encoding/json"
	"time"
)

// Job is a marketplace search hit.
type Job struct {
	SourceID         string     `json:"id"`
	Ciphertext       string     `json:"ciphertext,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Budget           string     `json:"budget"`
	BudgetNumeric    float64    `json:"budget_numeric"`
	Skills           []string   `json:"skills"`
	PostedAt         *time.Time `json:"posted_at,omitempty"`
	URL              string     `json:"url"`
	ClientCountry    string     `json:"client_country,omitempty"`
	ClientRating     *float64   `json:"client_rating,omitempty"`
	ClientTotalSpent *float64   `json:"client_total_spent,omitempty"`
	Proposals        string     `json:"proposals,omitempty"`
	JobType          string     `json:"job_type,omitempty"`
	ExperienceLevel  string     `json:"experience_level,omitempty"`
}

type JobList []Job

func (l JobList) MarshalBinary() ([]byte, error) {
	return json.Marshal([]Job(l))
}

func (l *JobList) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, (*[]Job)(l))
}

// JobDetails is the dense record returned for a single posting.
type JobDetails struct {
	ID             string   `json:"id"`
	Ciphertext     string   `json:"ciphertext"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Status         string   `json:"status,omitempty"`
	PostedOn       string   `json:"posted_on,omitempty"`
	URL            string   `json:"url"`
	JobType        string   `json:"job_type,omitempty"`
	BudgetAmount   *float64 `json:"budget_amount,omitempty"`
	BudgetCurrency string   `json:"budget_currency,omitempty"`
	HourlyMin      *float64 `json:"hourly_min,omitempty"`
	HourlyMax      *float64 `json:"hourly_max,omitempty"`
	HourlyType     string   `json:"hourly_type,omitempty"`
	Category       string   `json:"category,omitempty"`
	DurationLabel  string   `json:"duration_label,omitempty"`
	DurationWeeks  *int     `json:"duration_weeks,omitempty"`

	TotalApplicants *int `json:"total_applicants,omitempty"`
	TotalHired      *int `json:"total_hired,omitempty"`
	TotalInvited    *int `json:"total_invited,omitempty"`

	Skills []string `json:"skills"`

	ClientCity             string   `json:"client_city,omitempty"`
	ClientCountry          string   `json:"client_country,omitempty"`
	ClientTimezone         string   `json:"client_timezone,omitempty"`
	ClientTotalAssignments *int     `json:"client_total_assignments,omitempty"`
	ClientFeedbackCount    *int     `json:"client_feedback_count,omitempty"`
	ClientScore            *float64 `json:"client_score,omitempty"`
	ClientJobsWithHires    *int     `json:"client_jobs_with_hires,omitempty"`
	ClientHours            *float64 `json:"client_hours,omitempty"`
	ClientTotalSpent       *float64 `json:"client_total_spent,omitempty"`

	Qualifications []string `json:"qualifications,omitempty"`

	// Unavailable marks the placeholder emitted when the payload could not be parsed.
	Unavailable bool `json:"unavailable,omitempty"`
}

func (d JobDetails) MarshalBinary() ([]byte, error) {
	return json.Marshal(d)
}

func (d *JobDetails) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, d)
}
