package dispatcher

import (
	"strings"
	"testing"
	"time"

	"gigradar/services/gigradar/internal/models"

	"github.com/stretchr/testify/require"
)

func TestSkillList(t *testing.T) {
	skills := []string{"a", "b", "c", "d", "e", "f", "g"}
	require.Equal(t, "a, b, c, d, e +2 more", skillList(skills, 5))
	require.Equal(t, "a, b, c, d, e, f, g", skillList(skills, 8))
	require.Equal(t, "Not listed", skillList(nil, 5))
}

func TestChunkSkills(t *testing.T) {
	var skills []string
	for i := 0; i < 200; i++ {
		skills = append(skills, strings.Repeat("s", 20))
	}
	chunks := chunkSkills(skills, 1000)
	require.Greater(t, len(chunks), 1)
	total := 0
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 1000)
		total += len(strings.Split(c, ", "))
	}
	require.Equal(t, 200, total)
	require.Empty(t, chunkSkills(nil, 1000))
}

func TestJobEmbed_Truncation(t *testing.T) {
	job := models.Job{
		Title:       "Build a bot",
		Description: strings.Repeat("x", 2000),
		Skills:      []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"},
		Budget:      "",
	}
	tests := []struct {
		mode   Mode
		limit  int
		skills string
	}{
		{ModeReactive, 500, "a, b, c, d, e +4 more"},
		{ModeJobs, 400, "a, b, c, d, e, f, g, h +1 more"},
		{ModeMonitor, 300, "a, b, c, d, e +4 more"},
	}
	for _, tt := range tests {
		e := jobEmbed(job, tt.mode)
		require.Len(t, e.Description, tt.limit)
		require.True(t, strings.HasSuffix(e.Description, "..."))
		require.Equal(t, "Not specified", e.Fields[0].Value)
		require.Equal(t, tt.skills, e.Fields[len(e.Fields)-1].Value)
	}

	e := jobEmbed(job, ModeSkills)
	require.Equal(t, "a, b, c, d, e, f, g, h, i", e.Fields[len(e.Fields)-1].Value)
}

func TestJobEmbed_NormalizesFields(t *testing.T) {
	job := models.Job{
		Title:           "Bot — v2",
		Budget:          "$500–$1,000",
		JobType:         "Fixed “price”",
		ExperienceLevel: "Expert…",
		Proposals:       "5 to 10",
		ClientCountry:   "Türkiye",
		Skills:          []string{"Node.js", "Python’s asyncio"},
	}

	tests := []struct {
		mode   Mode
		fields map[string]string
	}{
		{ModeJobs, map[string]string{
			"Budget":    "$500-$1,000",
			"Type":      "Fixed \"price\"",
			"Level":     "Expert...",
			"Proposals": "5 to 10",
			"Client":    "T?rkiye",
			"Skills":    "Node.js, Python's asyncio",
		}},
		{ModeSkills, map[string]string{
			"Budget": "$500-$1,000",
			"Skills": "Node.js, Python's asyncio",
		}},
	}
	for _, tt := range tests {
		e := jobEmbed(job, tt.mode)
		require.Equal(t, "Bot - v2", e.Title)
		got := make(map[string]string)
		for _, f := range e.Fields {
			got[f.Name] = f.Value
		}
		for name, want := range tt.fields {
			require.Equal(t, want, got[name], name)
		}
		require.Equal(t, []string{"Node.js", "Python’s asyncio"}, job.Skills)
	}
}

func TestSkillHistogram_TiesKeepFirstSeenOrder(t *testing.T) {
	jobs := []models.Job{
		{Skills: []string{"X", "Y"}},
		{Skills: []string{"Z", "Y", ""}},
		{Skills: []string{"W"}},
	}
	got := skillHistogram(jobs)
	require.Equal(t, []skillCount{{"Y", 2}, {"X", 1}, {"Z", 1}, {"W", 1}}, got)
}

func TestForumEmbed(t *testing.T) {
	replies := 4
	posted := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	e := forumEmbed(models.ForumThread{
		Link:        "https://f.example/threads/a.1/",
		Title:       "Bot wanted",
		Author:      "alice",
		Replies:     &replies,
		Description: strings.Repeat("d", 1000),
		PostedAt:    &posted,
	})
	require.Equal(t, "https://f.example/threads/a.1/", e.URL)
	require.Len(t, e.Description, 400)
	require.Len(t, e.Fields, 2)
	require.Equal(t, &posted, e.Timestamp)
}
