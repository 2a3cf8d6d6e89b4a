package marketplace

import (
	"testing"
	"time"

	"gigradar/services/gigradar/internal/errors"

	"github.com/stretchr/testify/require"
)

const searchFixture = `{
  "data": {
    "search": {
      "universalSearchNuxt": {
        "visitorJobSearchV1": {
          "paging": {"total": 2, "offset": 0, "count": 10},
          "results": [
            {
              "id": "1",
              "title": "Python backend",
              "description": "Build an API",
              "ontologySkills": [{"prefLabel": "Python"}, {"prefLabel": "Django"}],
              "jobTile": {"job": {
                "ciphertext": "~abc",
                "jobType": "HOURLY",
                "hourlyBudgetMin": 30,
                "hourlyBudgetMax": 50,
                "contractorTier": "EXPERT",
                "createTime": "2024-03-01T10:00:00.000Z"
              }}
            },
            {
              "id": "2",
              "title": "Scraper",
              "description": "Scrape things",
              "ontologySkills": [{"prefLabel": "Python"}, {"prefLabel": ""}, {"prefLabel": "Django"}],
              "jobTile": {"job": {
                "ciphertext": "~def",
                "hourlyBudgetMin": "30",
                "hourlyBudgetMax": "50"
              }}
            }
          ]
        }
      }
    }
  }
}`

func TestParseSearch(t *testing.T) {
	jobs, err := parseSearch([]byte(searchFixture), "https://m.example")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	require.Equal(t, "~abc", jobs[0].SourceID)
	require.Equal(t, "$30-$50/hr", jobs[0].Budget)
	require.Equal(t, 30.0, jobs[0].BudgetNumeric)
	require.Equal(t, []string{"Python", "Django"}, jobs[0].Skills)
	require.Equal(t, "https://m.example/jobs/~abc", jobs[0].URL)
	require.Equal(t, "EXPERT", jobs[0].ExperienceLevel)
	require.NotNil(t, jobs[0].PostedAt)
	require.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *jobs[0].PostedAt)

	require.Equal(t, "~def", jobs[1].SourceID)
	require.Equal(t, "$30-$50/hr", jobs[1].Budget)
	require.Equal(t, []string{"Python", "Django"}, jobs[1].Skills)
	require.Nil(t, jobs[1].PostedAt)
}

func TestParseSearch_TrimmedEnvelope(t *testing.T) {
	body := `{"visitorJobSearchV1": {"results": [{"id": "7", "title": "t", "jobTile": {"job": {"fixedPriceAmount": {"amount": "150"}}}}]}}`
	jobs, err := parseSearch([]byte(body), "https://m.example")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "7", jobs[0].SourceID)
	require.Equal(t, "$150", jobs[0].Budget)
	require.Empty(t, jobs[0].URL)
}

func TestParseSearch_Errors(t *testing.T) {
	_, err := parseSearch([]byte(`not json`), "")
	require.True(t, errors.Is(err, errors.ErrTypeParse))

	_, err = parseSearch([]byte(`{"data": {"other": []}}`), "")
	require.True(t, errors.Is(err, errors.ErrTypeParse))
}

func detailsFixture(buyer string) string {
	return `{"data": {"jobPubDetails": {
  "opening": {
    "status": "ACTIVE",
    "postedOn": "2024-05-06T07:08:09.123Z",
    "description": "Long description",
    "info": {"id": "123", "title": "Data pipeline", "type": "FIXED", "ciphertext": "~0abc"},
    "budget": {"amount": 1200, "currencyCode": "USD"},
    "extendedBudgetInfo": {"hourlyBudgetMin": 0, "hourlyBudgetMax": null},
    "clientActivity": {"totalApplicants": 15, "totalHired": 0, "totalInvitedToInterview": 2},
    "sandsData": {
      "ontologySkills": [{"prefLabel": "Go"}, {"prefLabel": ""}],
      "additionalSkills": [{"prefLabel": "PostgreSQL"}]
    },
    "category": {"name": "Web Development"},
    "engagementDuration": {"label": "1 to 3 months", "weeks": 8}
  },
  "buyer": ` + buyer + `,
  "qualifications": {"minJobSuccessScore": 90, "minOdeskHours": 0, "prefEnglishSkill": "FLUENT", "risingTalent": true}
}}}`
}

func TestParseDetails(t *testing.T) {
	body := detailsFixture(`{
    "location": {"city": "Austin", "country": "United States", "countryTimezone": "UTC-06:00"},
    "stats": {"totalAssignments": 12, "feedbackCount": 9, "score": 4.9, "totalJobsWithHires": 7,
              "totalCharges": {"amount": 15000.5, "currencyCode": "USD"}, "hoursCount": 320}
  }`)

	d, err := parseDetails([]byte(body), "~0abc", "https://m.example")
	require.NoError(t, err)
	require.Equal(t, "Data pipeline", d.Title)
	require.Equal(t, "2024-05-06 07:08 UTC", d.PostedOn)
	require.Equal(t, []string{"Go", "PostgreSQL"}, d.Skills)
	require.NotNil(t, d.BudgetAmount)
	require.Equal(t, 1200.0, *d.BudgetAmount)
	require.Nil(t, d.HourlyMin)
	require.Nil(t, d.HourlyMax)
	require.Equal(t, 8, *d.DurationWeeks)
	require.Equal(t, 15, *d.TotalApplicants)
	require.Equal(t, "Austin", d.ClientCity)
	require.Equal(t, 15000.5, *d.ClientTotalSpent)
	require.Equal(t, "https://m.example/jobs/~0abc", d.URL)
	require.Equal(t, []string{"Job success score >= 90%", "English: FLUENT", "Rising talent welcome"}, d.Qualifications)
	require.False(t, d.Unavailable)
}

func TestParseDetails_TotalSpentFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		buyer string
		want  *float64
	}{
		{"stats.totalSpent", `{"stats": {"totalCharges": {"amount": null}, "totalSpent": 100}}`, ptr(100)},
		{"stats.totalPayments", `{"stats": {"totalPayments": "250.75"}}`, ptr(250.75)},
		{"buyer.totalSpent", `{"stats": {}, "totalSpent": 300}`, ptr(300)},
		{"buyer.totalCharges", `{"totalCharges": {"amount": 400}}`, ptr(400)},
		{"absent", `{"stats": {}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDetails([]byte(detailsFixture(tt.buyer)), "~0abc", "")
			require.NoError(t, err)
			require.Equal(t, tt.want, d.ClientTotalSpent)
		})
	}
}

func TestParseDetails_Missing(t *testing.T) {
	_, err := parseDetails([]byte(`{"data": {"jobPubDetails": null}}`), "~x", "")
	require.True(t, errors.Is(err, errors.ErrTypeParse))
}

func TestFormatPostedOn(t *testing.T) {
	require.Equal(t, "2024-01-02 03:04 UTC", formatPostedOn("2024-01-02T03:04:05Z"))
	require.Equal(t, "2024-01-02 01:04 UTC", formatPostedOn("2024-01-02T03:04:05+02:00"))
	require.Equal(t, "2024-01-02 03:04 UTC", formatPostedOn("2024-01-02T03:04:05"))
	require.Equal(t, "yesterday", formatPostedOn("yesterday"))
}

func TestNormalizeID(t *testing.T) {
	require.Equal(t, "~abc", normalizeID("abc"))
	require.Equal(t, "~abc", normalizeID("~abc"))
	require.Equal(t, "~abc", normalizeID(" abc "))
}

func TestGraphQLAuthError(t *testing.T) {
	require.True(t, graphQLAuthError([]byte(`{"errors": [{"message": "Unauthorized"}], "data": null}`)))
	require.True(t, graphQLAuthError([]byte(`{"errors": [{"message": "denied", "extensions": {"code": 403}}]}`)))
	require.False(t, graphQLAuthError([]byte(`{"errors": [{"message": "Unauthorized"}], "data": {"x": 1}}`)))
	require.False(t, graphQLAuthError([]byte(`{"errors": [{"message": "rate limited"}]}`)))
	require.False(t, graphQLAuthError([]byte(`{"data": {}}`)))
}

func TestLeftTrimmed(t *testing.T) {
	require.Equal(t, [][]string{{"a", "b", "c"}, {"b", "c"}, {"c"}}, leftTrimmed("a", "b", "c"))
}

func ptr(f float64) *float64 { return &f }
