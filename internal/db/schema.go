package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- DOCUMENT / CHUNK
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project_id ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS chunk_count ON document TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created ON document TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS document_project ON document FIELDS project_id;

    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS document_id ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS position ON chunk TYPE int;
    DEFINE FIELD IF NOT EXISTS text ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created ON chunk TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS chunk_document_position ON chunk FIELDS document_id, position UNIQUE;

    -- ==========================================================================
    -- LAB JOB
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS lab_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project_id ON lab_job TYPE string;
    DEFINE FIELD IF NOT EXISTS document_id ON lab_job TYPE string;
    DEFINE FIELD IF NOT EXISTS mode ON lab_job TYPE string;
    DEFINE FIELD IF NOT EXISTS query ON lab_job TYPE string;           -- JSON envelope with explicit mode
    DEFINE FIELD IF NOT EXISTS direction ON lab_job TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS state ON lab_job TYPE string
        ASSERT $value IN ["queued", "processing", "succeeded", "failed"];
    DEFINE FIELD IF NOT EXISTS lesson_ids ON lab_job TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS error ON lab_job TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS error_detail ON lab_job TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS attempts ON lab_job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created ON lab_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS started ON lab_job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS completed ON lab_job TYPE option<datetime>;
    DEFINE INDEX IF NOT EXISTS lab_job_project ON lab_job FIELDS project_id;
    DEFINE INDEX IF NOT EXISTS lab_job_state ON lab_job FIELDS state;

    -- One record per project with a non-terminal job. The record id is the
    -- project id, so a second CREATE fails with "already exists".
    DEFINE TABLE IF NOT EXISTS active_lab SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS job ON active_lab TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON active_lab TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS active_lab_job ON active_lab FIELDS job;

    -- ==========================================================================
    -- MICRO LESSON
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS micro_lesson SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project_id ON micro_lesson TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON micro_lesson TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON micro_lesson TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS order_index ON micro_lesson TYPE int;
    DEFINE FIELD IF NOT EXISTS slides ON micro_lesson TYPE array<object>;
    DEFINE FIELD IF NOT EXISTS slides.*.position ON micro_lesson TYPE int;
    DEFINE FIELD IF NOT EXISTS slides.*.text ON micro_lesson TYPE string;
    DEFINE FIELD IF NOT EXISTS source_job ON micro_lesson TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created ON micro_lesson TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS micro_lesson_project_order ON micro_lesson FIELDS project_id, order_index;
`
