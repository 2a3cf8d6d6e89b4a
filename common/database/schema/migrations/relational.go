package migrations

import "gigradar/common/database/schema"

var CreateJobsTable = schema.Migration{
	Version:     1,
	Description: "Create jobs table",
	Up: `
		CREATE TABLE IF NOT EXISTS jobs (
			source_id TEXT PRIMARY KEY,
			title TEXT,
			description TEXT,
			budget TEXT,
			budget_numeric DOUBLE PRECISION NOT NULL DEFAULT 0,
			skills TEXT,
			posted_at BIGINT,
			url TEXT,
			client_country TEXT,
			client_rating DOUBLE PRECISION,
			client_total_spent DOUBLE PRECISION,
			proposals TEXT,
			job_type TEXT,
			experience_level TEXT,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)
	`,
	Down: `DROP TABLE IF EXISTS jobs`,
}

var CreateForumThreadsTable = schema.Migration{
	Version:     2,
	Description: "Create forum_threads table",
	Up: `
		CREATE TABLE IF NOT EXISTS forum_threads (
			link TEXT PRIMARY KEY,
			thread_id TEXT,
			title TEXT NOT NULL,
			author TEXT,
			replies INTEGER,
			views INTEGER,
			posted_at BIGINT,
			description TEXT,
			decision TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)
	`,
	Down: `DROP TABLE IF EXISTS forum_threads`,
}

var AddForumThreadPostedFlag = schema.Migration{
	Version:     3,
	Description: "Add posted_to_chat flag to forum_threads",
	Up: `
		ALTER TABLE forum_threads ADD COLUMN posted_to_chat BOOLEAN NOT NULL DEFAULT FALSE;
		CREATE INDEX IF NOT EXISTS idx_forum_threads_feed ON forum_threads (decision, posted_to_chat)
	`,
	Down: `
		DROP INDEX IF EXISTS idx_forum_threads_feed;
		ALTER TABLE forum_threads DROP COLUMN posted_to_chat
	`,
}

// Relational is the ordered migration set for the jobs/threads store.
var Relational = []schema.Migration{
	CreateJobsTable,
	CreateForumThreadsTable,
	AddForumThreadPostedFlag,
}
