package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250801-000000",
		Description: "Initial schema",
		Up: []string{
			// Point balances. The CHECK backs up the guarded UPDATE in the
			// deduction path so a bug can never drive a balance negative.
			`CREATE TABLE IF NOT EXISTS user_balances (
				user_id TEXT PRIMARY KEY,
				balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
				lifetime_added INTEGER NOT NULL DEFAULT 0,
				lifetime_spent INTEGER NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL
			)`,

			// Audit trail for every point movement
			`CREATE TABLE IF NOT EXISTS point_transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				amount INTEGER NOT NULL,
				balance_after INTEGER NOT NULL,
				order_id TEXT,
				analysis_id TEXT,
				description TEXT NOT NULL,
				metadata TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_point_transactions_user_id ON point_transactions(user_id, created_at)`,

			// Processed payment orders. The PRIMARY KEY on order_id is what
			// makes webhook retries idempotent.
			`CREATE TABLE IF NOT EXISTS processed_orders (
				order_id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				points INTEGER NOT NULL,
				processed_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_processed_orders_user_id ON processed_orders(user_id)`,

			// Per-request telemetry
			`CREATE TABLE IF NOT EXISTS analysis_insights (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				service_type TEXT NOT NULL,
				mode TEXT NOT NULL,
				target_url TEXT,
				status TEXT NOT NULL,
				error_code TEXT,
				error_message TEXT,
				retried INTEGER NOT NULL DEFAULT 0,
				prompt_tokens INTEGER NOT NULL DEFAULT 0,
				output_tokens INTEGER NOT NULL DEFAULT 0,
				points_charged INTEGER NOT NULL DEFAULT 0,
				model_id TEXT,
				pricing_version TEXT,
				generate_duration_ms INTEGER NOT NULL DEFAULT 0,
				total_duration_ms INTEGER NOT NULL DEFAULT 0,
				request_id TEXT,
				archive_key TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analysis_insights_user_id ON analysis_insights(user_id, created_at)`,
		},
	})
}
