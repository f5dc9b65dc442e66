package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE automations (
				id UUID PRIMARY KEY,
				tenant_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				trigger_kind VARCHAR(50) NOT NULL,
				trigger_config JSONB,
				active BOOLEAN NOT NULL DEFAULT true,
				steps JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_tenant_id ON automations(tenant_id);
			CREATE INDEX idx_automations_trigger_kind ON automations(tenant_id, trigger_kind) WHERE active;

			CREATE TABLE executions (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id),
				tenant_id VARCHAR(255) NOT NULL,
				subject_id VARCHAR(255),
				status VARCHAR(20) NOT NULL CHECK (status IN ('running', 'waiting', 'completed', 'failed')),
				current_step_index INT NOT NULL DEFAULT 0,
				resume_at TIMESTAMP WITH TIME ZONE,
				context_data JSONB,
				error_message TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_automation_id ON executions(automation_id);
			CREATE INDEX idx_executions_due ON executions(resume_at) WHERE status = 'waiting';
		`,
	}
}
