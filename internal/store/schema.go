package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS businesses (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS files (
	id               UUID PRIMARY KEY,
	business_id      UUID REFERENCES businesses(id) ON DELETE SET NULL,
	file_name        TEXT NOT NULL,
	file_type        TEXT NOT NULL,
	file_path        TEXT NOT NULL DEFAULT '',
	source_url       TEXT NOT NULL DEFAULT '',
	metadata         JSONB NOT NULL DEFAULT '{}'::jsonb,
	parser_used      TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'uploaded',
	total_chunks     INTEGER NOT NULL DEFAULT 0,
	unique_chunks    INTEGER NOT NULL DEFAULT 0,
	duplicate_chunks INTEGER NOT NULL DEFAULT 0,
	dedup_ratio      DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message    VARCHAR(255) NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);
CREATE INDEX IF NOT EXISTS idx_files_file_hash ON files((metadata->>'file_hash'));

CREATE TABLE IF NOT EXISTS global_content_index (
	id                 UUID PRIMARY KEY,
	semantic_hash      TEXT NOT NULL UNIQUE,
	cleaned_text       TEXT NOT NULL,
	raw_text           TEXT NOT NULL DEFAULT '',
	tokens             INTEGER NOT NULL DEFAULT 0,
	business_id        UUID,
	first_seen_file_id UUID,
	source_type        TEXT NOT NULL DEFAULT '',
	occurrence_count   INTEGER NOT NULL DEFAULT 1,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunks (
	id                UUID PRIMARY KEY,
	file_id           UUID NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	business_id       UUID,
	chunk_index       INTEGER NOT NULL,
	text              TEXT NOT NULL,
	cleaned_text      TEXT NOT NULL,
	tokens            INTEGER NOT NULL DEFAULT 0,
	source_type       TEXT NOT NULL DEFAULT '',
	metadata          JSONB NOT NULL DEFAULT '{}'::jsonb,
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	semantic_hash     TEXT NOT NULL,
	global_content_id UUID REFERENCES global_content_index(id) ON DELETE SET NULL,
	reasoning         JSONB NOT NULL DEFAULT '{}'::jsonb,
	is_duplicate      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (file_id, chunk_index),
	UNIQUE (file_id, semantic_hash)
);

CREATE INDEX IF NOT EXISTS idx_chunks_semantic_hash ON chunks(semantic_hash);

CREATE TABLE IF NOT EXISTS taxonomy_categories (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	cat_group   TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (cat_group, name)
);

CREATE TABLE IF NOT EXISTS entity_links (
	id             UUID PRIMARY KEY,
	entity_type    TEXT NOT NULL,
	entity_id      UUID NOT NULL,
	category_id    UUID REFERENCES taxonomy_categories(id) ON DELETE SET NULL,
	subcategory_id UUID REFERENCES taxonomy_categories(id) ON DELETE SET NULL,
	business_id    UUID REFERENCES businesses(id) ON DELETE SET NULL,
	fingerprint    TEXT NOT NULL UNIQUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (entity_type, entity_id)
);

CREATE TABLE IF NOT EXISTS ingest_sources (
	id             UUID PRIMARY KEY,
	feed_url       TEXT NOT NULL UNIQUE,
	source_type    TEXT NOT NULL DEFAULT 'rss',
	articles_added INTEGER NOT NULL DEFAULT 0,
	partials       INTEGER NOT NULL DEFAULT 0,
	failures       INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'idle',
	avg_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_run_at    TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
