package store

// SchemaSQL defines the database structure
const SchemaSQL = `
-- ========================================================
-- 1. SENTENCE UNITS
-- ========================================================

-- Sentences: one row per unit of work. The primary key is a SHA-256 of
-- the normalized sentence text, so re-ingesting the same input is a no-op.
CREATE TABLE IF NOT EXISTS sentences (
    id TEXT PRIMARY KEY,              -- Content hash (SHA-256 hex)
    text TEXT NOT NULL,               -- Raw sentence text
    position INTEGER NOT NULL,        -- 0, 1, 2... order in source
    length INTEGER NOT NULL,          -- Character count
    status TEXT NOT NULL DEFAULT 'pending',  -- 'pending', 'done', 'failed'
    perplexity REAL,                  -- NULL unless status = 'done'
    error_msg TEXT,                   -- If failed, why?
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- ========================================================
-- 2. INDEXES
-- ========================================================
CREATE INDEX IF NOT EXISTS idx_sentences_status ON sentences(status, position);
CREATE INDEX IF NOT EXISTS idx_sentences_perplexity ON sentences(perplexity);
CREATE INDEX IF NOT EXISTS idx_sentences_length ON sentences(length);
`
