package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions. The full definition lives in a JSONB
			-- column; relational columns exist for listing and filtering.
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			-- Finished run results. Job instance results are stored as a
			-- JSONB array in submission order.
			CREATE TABLE runs (
				run_id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'succeeded', 'failed', 'cancelled')),
				jobs JSONB NOT NULL DEFAULT '[]',
				metadata JSONB,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_runs_workflow_id ON runs(workflow_id);
			CREATE INDEX idx_runs_status ON runs(status);
			CREATE INDEX idx_runs_started_at ON runs(started_at);
		`,
	}
}
