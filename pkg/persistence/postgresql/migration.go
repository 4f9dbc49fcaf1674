package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_drafts (
				id UUID PRIMARY KEY,
				logical_name VARCHAR(255) NOT NULL,
				display_name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				trigger_entity_logical_name VARCHAR(255),
				trigger_cron_expression VARCHAR(255),
				steps JSONB NOT NULL DEFAULT '[]',
				node_positions JSONB NOT NULL DEFAULT '{}',
				max_attempts INT NOT NULL DEFAULT 1,
				is_enabled BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_drafts_logical_name ON workflow_drafts(logical_name);
			CREATE INDEX idx_workflow_drafts_created_at ON workflow_drafts(created_at);
		`,
	}
}
