package records

const schema = `
CREATE TABLE IF NOT EXISTS processing_records (
    session_id       TEXT PRIMARY KEY,
    source_url       TEXT NOT NULL,
    title            TEXT,
    status           TEXT NOT NULL,
    attempt          INTEGER NOT NULL DEFAULT 1,
    progress_stage   TEXT,
    progress_percent REAL NOT NULL DEFAULT 0,
    progress_message TEXT,
    metadata_json    TEXT,
    transcript_json  TEXT,
    entities_json    TEXT,
    summary          TEXT,
    embedding_ref    TEXT,
    segment_count    INTEGER NOT NULL DEFAULT 0,
    word_count       INTEGER NOT NULL DEFAULT 0,
    language         TEXT,
    error_cause      TEXT,
    error_message    TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL,
    completed_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_processing_records_status
    ON processing_records (status);

CREATE INDEX IF NOT EXISTS idx_processing_records_created
    ON processing_records (created_at);
`
