package marketplace

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/models"
)

const UnavailableTitle = "Job details temporarily unavailable"

var searchResultChains = leftTrimmed("data", "search", "universalSearchNuxt", "visitorJobSearchV1", "results")

var detailsChains = leftTrimmed("data", "jobPubDetails")

func decodeTree(body []byte) (interface{}, error) {
	var tree interface{}
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, errors.Parse("decoding graphql response", err)
	}
	return tree, nil
}

// graphQLAuthError reports a 200 response whose only content is an
// authorization failure in the GraphQL errors array.
func graphQLAuthError(body []byte) bool {
	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message    string                 `json:"message"`
			Extensions map[string]interface{} `json:"extensions"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return false
	}
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		return false
	}
	for _, e := range envelope.Errors {
		msg := strings.ToLower(e.Message + " " + fmt.Sprint(e.Extensions["code"]))
		if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication") ||
			strings.Contains(msg, "permission") || strings.Contains(msg, "401") || strings.Contains(msg, "403") {
			return true
		}
	}
	return false
}

func parseSearch(body []byte, baseURL string) ([]models.Job, error) {
	tree, err := decodeTree(body)
	if err != nil {
		return nil, err
	}
	results, ok := firstArray(tree, searchResultChains)
	if !ok {
		return nil, errors.Parse("no search results array in response", nil)
	}

	jobs := make([]models.Job, 0, len(results))
	for _, r := range results {
		if _, ok := r.(map[string]interface{}); !ok {
			continue
		}
		jobs = append(jobs, toJob(r, baseURL))
	}
	return jobs, nil
}

func toJob(r interface{}, baseURL string) models.Job {
	job := dig(r, "jobTile", "job")

	budget, numeric := FormatBudget(BudgetInput{
		FixedAmount: numOrZero(job, "fixedPriceAmount", "amount"),
		HourlyMin:   numOrZero(job, "hourlyBudgetMin"),
		HourlyMax:   numOrZero(job, "hourlyBudgetMax"),
		Weekly:      numOrZero(job, "weeklyRetainerBudget"),
	})

	ciphertext := str(job, "ciphertext")
	if ciphertext == "" {
		ciphertext = str(job, "cipherText")
	}
	sourceID := ciphertext
	if sourceID == "" {
		sourceID = str(r, "id")
	}

	out := models.Job{
		SourceID:        sourceID,
		Ciphertext:      ciphertext,
		Title:           str(r, "title"),
		Description:     str(r, "description"),
		Budget:          budget,
		BudgetNumeric:   numeric,
		Skills:          labels(dig(r, "ontologySkills"), "prettyName", "prefLabel"),
		JobType:         str(job, "jobType"),
		ExperienceLevel: str(job, "contractorTier"),
		Proposals:       str(job, "totalApplicants"),
		ClientCountry:   str(r, "client", "location", "country"),
		ClientRating:    floatPtr(r, "client", "totalFeedback"),
		ClientTotalSpent: firstFloat(r,
			[]string{"client", "totalSpent", "amount"},
			[]string{"client", "totalSpent"},
		),
	}
	if ciphertext != "" {
		out.URL = jobURL(baseURL, ciphertext)
	}
	for _, key := range []string{"publishTime", "createTime"} {
		if t, ok := parseTime(str(job, key)); ok {
			out.PostedAt = &t
			break
		}
	}
	return out
}

func parseDetails(body []byte, id, baseURL string) (*models.JobDetails, error) {
	tree, err := decodeTree(body)
	if err != nil {
		return nil, err
	}
	root, ok := firstObject(tree, detailsChains)
	if !ok {
		return nil, errors.Parse("no jobPubDetails object in response", nil)
	}
	opening := dig(root, "opening")
	if opening == nil {
		return nil, errors.Parse("jobPubDetails has no opening", nil)
	}
	buyer := dig(root, "buyer")
	stats := dig(buyer, "stats")

	d := &models.JobDetails{
		ID:             str(opening, "info", "id"),
		Ciphertext:     str(opening, "info", "ciphertext"),
		Title:          str(opening, "info", "title"),
		Description:    str(opening, "description"),
		Status:         str(opening, "status"),
		PostedOn:       formatPostedOn(str(opening, "postedOn")),
		JobType:        str(opening, "info", "type"),
		BudgetAmount:   positive(floatPtr(opening, "budget", "amount")),
		BudgetCurrency: str(opening, "budget", "currencyCode"),
		HourlyMin:      positive(floatPtr(opening, "extendedBudgetInfo", "hourlyBudgetMin")),
		HourlyMax:      positive(floatPtr(opening, "extendedBudgetInfo", "hourlyBudgetMax")),
		HourlyType:     str(opening, "extendedBudgetInfo", "hourlyBudgetType"),
		Category:       str(opening, "category", "name"),
		DurationLabel:  str(opening, "engagementDuration", "label"),
		DurationWeeks:  intPtr(opening, "engagementDuration", "weeks"),

		TotalApplicants: intPtr(opening, "clientActivity", "totalApplicants"),
		TotalHired:      intPtr(opening, "clientActivity", "totalHired"),
		TotalInvited:    intPtr(opening, "clientActivity", "totalInvitedToInterview"),

		ClientCity:             str(buyer, "location", "city"),
		ClientCountry:          str(buyer, "location", "country"),
		ClientTimezone:         str(buyer, "location", "countryTimezone"),
		ClientTotalAssignments: intPtr(stats, "totalAssignments"),
		ClientFeedbackCount:    intPtr(stats, "feedbackCount"),
		ClientScore:            floatPtr(stats, "score"),
		ClientJobsWithHires:    intPtr(stats, "totalJobsWithHires"),
		ClientHours:            floatPtr(stats, "hoursCount"),
		ClientTotalSpent: firstFloat(buyer,
			[]string{"stats", "totalCharges", "amount"},
			[]string{"stats", "totalSpent"},
			[]string{"stats", "totalPayments"},
			[]string{"totalSpent"},
			[]string{"totalCharges", "amount"},
		),
		Qualifications: qualifications(dig(root, "qualifications")),
	}

	skills := labels(dig(opening, "sandsData", "ontologySkills"), "prefLabel", "prettyName")
	skills = append(skills, labels(dig(opening, "sandsData", "additionalSkills"), "prefLabel", "prettyName")...)
	d.Skills = skills

	if d.Ciphertext == "" {
		d.Ciphertext = id
	}
	if d.ID == "" {
		d.ID = id
	}
	d.URL = jobURL(baseURL, d.Ciphertext)
	return d, nil
}

func placeholderDetails(id, baseURL string) *models.JobDetails {
	return &models.JobDetails{
		ID:          id,
		Ciphertext:  id,
		Title:       UnavailableTitle,
		Description: "The posting could not be read right now. Try again later.",
		URL:         jobURL(baseURL, id),
		Unavailable: true,
	}
}

func firstFloat(node interface{}, chains ...[]string) *float64 {
	for _, chain := range chains {
		if f := floatPtr(node, chain...); f != nil {
			return f
		}
	}
	return nil
}

func positive(f *float64) *float64 {
	if f == nil || *f <= 0 {
		return nil
	}
	return f
}

func qualifications(q interface{}) []string {
	if q == nil {
		return nil
	}
	var out []string
	if score, ok := num(q, "minJobSuccessScore"); ok && score > 0 {
		out = append(out, fmt.Sprintf("Job success score >= %s%%", money(score)))
	}
	if hours, ok := num(q, "minOdeskHours"); ok && hours > 0 {
		out = append(out, fmt.Sprintf("At least %s hours worked", money(hours)))
	}
	if english := str(q, "prefEnglishSkill"); english != "" && english != "0" && !strings.EqualFold(english, "any") {
		out = append(out, "English: "+english)
	}
	if boolean(q, "risingTalent") {
		out = append(out, "Rising talent welcome")
	}
	if boolean(q, "shouldHavePortfolio") {
		out = append(out, "Portfolio required")
	}
	return out
}

func formatPostedOn(raw string) string {
	if t, ok := parseTime(raw); ok {
		return t.UTC().Format("2006-01-02 15:04") + " UTC"
	}
	return raw
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime reads ISO-8601 timestamps; values without a zone are UTC.
func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func jobURL(baseURL, ciphertext string) string {
	return baseURL + "/jobs/" + normalizeID(ciphertext)
}

// normalizeID formats an id as ~<id>.
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "~") {
		return id
	}
	return "~" + id
}
