package db

// SchemaSQL defines the index cache table. The record ID is the index
// cache key; payload holds the serialised chunks and vectors.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS index_cache SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS model ON index_cache TYPE string;
    DEFINE FIELD IF NOT EXISTS pages ON index_cache TYPE int;
    DEFINE FIELD IF NOT EXISTS chunks ON index_cache TYPE int;
    DEFINE FIELD IF NOT EXISTS dropped ON index_cache TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS payload ON index_cache TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON index_cache TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS accessed ON index_cache TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS access_count ON index_cache TYPE int DEFAULT 0;

    DEFINE INDEX IF NOT EXISTS index_cache_accessed ON index_cache FIELDS accessed;
`
