package dispatcher

import (
	"fmt"
	"sort"
	"strings"

	"gigradar/services/gigradar/internal/chat"
	"gigradar/services/gigradar/internal/models"
	"gigradar/services/gigradar/internal/textnorm"
)

// Mode selects how much of a posting an embed shows.
type Mode int

const (
	ModeReactive Mode = iota
	ModeJobs
	ModeSkills
	ModeMonitor
)

func (m Mode) descriptionLimit() int {
	switch m {
	case ModeReactive:
		return 500
	case ModeJobs, ModeSkills:
		return 400
	default:
		return 300
	}
}

func (m Mode) skillCap() int {
	if m == ModeJobs {
		return 8
	}
	return 5
}

const (
	fieldValueLimit = 1000
	histogramSize   = 10
)

// skillList joins up to max skills and appends "+N more" for the rest.
func skillList(skills []string, max int) string {
	if len(skills) == 0 {
		return "Not listed"
	}
	if len(skills) <= max {
		return strings.Join(skills, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(skills[:max], ", "), len(skills)-max)
}

// chunkSkills splits the full list into comma-joined chunks no longer than limit.
func chunkSkills(skills []string, limit int) []string {
	var chunks []string
	var b strings.Builder
	for _, s := range skills {
		s = textnorm.Clip(s, limit)
		sep := 0
		if b.Len() > 0 {
			sep = 2
		}
		if b.Len()+sep+len(s) > limit {
			chunks = append(chunks, b.String())
			b.Reset()
			sep = 0
		}
		if sep > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

func normalizeAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = textnorm.Normalize(v)
	}
	return out
}

func fieldValue(s string) string {
	return textnorm.Truncate(textnorm.Normalize(s), fieldValueLimit)
}

func jobEmbed(job models.Job, mode Mode) chat.Embed {
	e := chat.Embed{
		Title:       textnorm.Truncate(textnorm.Normalize(job.Title), 250),
		URL:         job.URL,
		Description: textnorm.Truncate(textnorm.Normalize(job.Description), mode.descriptionLimit()),
		Color:       chat.ColorInfo,
		Timestamp:   job.PostedAt,
	}
	if mode == ModeMonitor {
		e.Title = "New job alert: " + e.Title
		e.Color = chat.ColorAlert
	}

	e.Fields = append(e.Fields, chat.Field{Name: "Budget", Value: orDefault(fieldValue(job.Budget), "Not specified"), Inline: true})
	if job.JobType != "" {
		e.Fields = append(e.Fields, chat.Field{Name: "Type", Value: fieldValue(job.JobType), Inline: true})
	}
	if job.ExperienceLevel != "" {
		e.Fields = append(e.Fields, chat.Field{Name: "Level", Value: fieldValue(job.ExperienceLevel), Inline: true})
	}
	if mode == ModeJobs {
		if job.Proposals != "" {
			e.Fields = append(e.Fields, chat.Field{Name: "Proposals", Value: fieldValue(job.Proposals), Inline: true})
		}
		if job.ClientCountry != "" {
			e.Fields = append(e.Fields, chat.Field{Name: "Client", Value: fieldValue(job.ClientCountry), Inline: true})
		}
	}

	skills := normalizeAll(job.Skills)
	if mode == ModeSkills {
		chunks := chunkSkills(skills, fieldValueLimit)
		if len(chunks) == 0 {
			chunks = []string{"Not listed"}
		}
		for i, chunk := range chunks {
			name := "Skills"
			if i > 0 {
				name = fmt.Sprintf("Skills (cont. %d)", i)
			}
			e.Fields = append(e.Fields, chat.Field{Name: name, Value: chunk})
		}
	} else {
		e.Fields = append(e.Fields, chat.Field{Name: "Skills", Value: skillList(skills, mode.skillCap())})
	}
	return e
}

func headerEmbed(keyword string, count int, mode Mode) chat.Embed {
	title := fmt.Sprintf("Jobs for \"%s\"", keyword)
	if mode == ModeSkills {
		title = fmt.Sprintf("Skills for \"%s\"", keyword)
	}
	return chat.Embed{
		Title:       textnorm.Truncate(title, 250),
		Description: fmt.Sprintf("Found %d matching job(s).", count),
		Color:       chat.ColorInfo,
	}
}

func overflowEmbed(keyword string, hidden int) chat.Embed {
	return chat.Embed{
		Description: fmt.Sprintf("%d more result(s). Use `!jobs %s` for the full list.", hidden, keyword),
		Color:       chat.ColorInfo,
	}
}

func noResultsEmbed(keyword string) chat.Embed {
	return chat.Embed{
		Title:       chat.ReactionNoResults + " No jobs found",
		Description: fmt.Sprintf("Nothing matched \"%s\". Try a broader keyword.", keyword),
		Color:       chat.ColorWarning,
	}
}

func errorEmbed() chat.Embed {
	return chat.Embed{
		Title:       chat.ReactionError + " Something went wrong",
		Description: "The job search failed. Please try again in a few minutes.",
		Color:       chat.ColorError,
	}
}

func usageEmbed(command string) chat.Embed {
	return chat.Embed{
		Description: fmt.Sprintf("Usage: `!%s <keyword>` (at least 2 characters).", command),
		Color:       chat.ColorWarning,
	}
}

func helpEmbed() chat.Embed {
	return chat.Embed{
		Title: "Job search commands",
		Color: chat.ColorInfo,
		Fields: []chat.Field{
			{Name: "!jobs <keyword>", Value: "Up to 10 recent jobs with details."},
			{Name: "!skills <keyword>", Value: "Up to 5 jobs plus the most requested skills."},
			{Name: "!help_jobs", Value: "Show this message."},
			{Name: "Plain message", Value: "Any other message in this channel searches for up to 3 jobs (30s cooldown)."},
		},
	}
}

type skillCount struct {
	Skill string
	Count int
}

// skillHistogram counts skills across jobs, most frequent first; ties keep
// first-seen order.
func skillHistogram(jobs []models.Job) []skillCount {
	index := make(map[string]int)
	var counts []skillCount
	for _, job := range jobs {
		for _, s := range job.Skills {
			if s == "" {
				continue
			}
			if i, ok := index[s]; ok {
				counts[i].Count++
				continue
			}
			index[s] = len(counts)
			counts = append(counts, skillCount{Skill: s, Count: 1})
		}
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	return counts
}

func histogramEmbed(keyword string, counts []skillCount) chat.Embed {
	if len(counts) > histogramSize {
		counts = counts[:histogramSize]
	}
	lines := make([]string, 0, len(counts))
	for i, c := range counts {
		lines = append(lines, fmt.Sprintf("%d. %s (%d)", i+1, textnorm.Normalize(c.Skill), c.Count))
	}
	desc := strings.Join(lines, "\n")
	if desc == "" {
		desc = "No skills listed."
	}
	return chat.Embed{
		Title:       textnorm.Truncate(fmt.Sprintf("Top skills for \"%s\"", keyword), 250),
		Description: desc,
		Color:       chat.ColorInfo,
	}
}

func forumEmbed(t models.ForumThread) chat.Embed {
	e := chat.Embed{
		Title:       textnorm.Truncate(t.Title, 250),
		URL:         t.Link,
		Description: textnorm.Truncate(t.Description, 400),
		Color:       chat.ColorForum,
		Footer:      "Forum: hire a freelancer",
		Timestamp:   t.PostedAt,
	}
	if t.Author != "" {
		e.Fields = append(e.Fields, chat.Field{Name: "Author", Value: t.Author, Inline: true})
	}
	if t.Replies != nil {
		e.Fields = append(e.Fields, chat.Field{Name: "Replies", Value: fmt.Sprint(*t.Replies), Inline: true})
	}
	if t.Views != nil {
		e.Fields = append(e.Fields, chat.Field{Name: "Views", Value: fmt.Sprint(*t.Views), Inline: true})
	}
	return e
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
