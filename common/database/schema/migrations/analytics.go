package migrations

import "gigradar/common/database/schema"

var CreateClassifierDecisionsTable = schema.Migration{
	Version:     1,
	Description: "Create classifier_decisions table",
	Up: `
		CREATE TABLE IF NOT EXISTS classifier_decisions (
			id String,
			source LowCardinality(String),
			subject String,
			title String,
			label LowCardinality(String),
			model String,
			latency_ms UInt32,
			created_at DateTime
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(created_at)
		ORDER BY (created_at, id)
		SETTINGS index_granularity = 8192
	`,
	Down: `DROP TABLE IF EXISTS classifier_decisions`,
}

var Analytics = []schema.Migration{
	CreateClassifierDecisionsTable,
}
