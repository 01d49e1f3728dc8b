package journal

const Schema = `
CREATE TABLE IF NOT EXISTS calls (
	call_id TEXT PRIMARY KEY,
	family TEXT NOT NULL,
	position TEXT NOT NULL,
	computed_at DATETIME NOT NULL,
	evidence TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	decision_id TEXT PRIMARY KEY,
	position TEXT NOT NULL,
	committed_at DATETIME NOT NULL,
	marker TEXT NOT NULL,
	stoch_at DATETIME NOT NULL,
	macd_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calls_computed_at ON calls(computed_at);
CREATE INDEX IF NOT EXISTS idx_decisions_committed_at ON decisions(committed_at);
`
