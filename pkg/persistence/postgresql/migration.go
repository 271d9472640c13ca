package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				organization_id VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type VARCHAR(50) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				execution_count BIGINT NOT NULL DEFAULT 0,
				last_executed_at TIMESTAMP WITH TIME ZONE,
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_trigger_active ON workflows(trigger_type, is_active);
			CREATE INDEX idx_workflows_organization_id ON workflows(organization_id);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_steps (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				config JSONB NOT NULL DEFAULT '{}',
				PRIMARY KEY (workflow_id, id),
				UNIQUE (workflow_id, position)
			);
		`,
		2: `
			CREATE TABLE execution_runs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				trigger_event VARCHAR(100) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				steps_executed INT NOT NULL DEFAULT 0,
				steps_total INT NOT NULL,
				duration_ms BIGINT,
				step_results JSONB NOT NULL DEFAULT '[]',
				error TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_execution_runs_workflow_started ON execution_runs(workflow_id, started_at DESC);
			CREATE INDEX idx_execution_runs_status ON execution_runs(status);
		`,
		3: `
			CREATE TABLE continuations (
				run_id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				next_step_index INT NOT NULL,
				resume_at TIMESTAMP WITH TIME ZONE NOT NULL,
				steps JSONB NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				attempts INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_continuations_resume_at ON continuations(resume_at);
		`,
	}
}
