package sqlite

// schema is applied in full on every Open call via CREATE TABLE/INDEX/VIEW
// IF NOT EXISTS, the same idempotent-schema pattern BeadsLog's sqlite.schema
// uses. Table creation order matches the fixed lock-acquisition order
// (meta, functions, claims, subdirectory_locks, scratches, match_history,
// branch_progress, agents, audit_log) to keep deadlock avoidance visible at
// the schema level, not just in query code.
const schema = `
-- Meta: schema version and other singleton key/value state.
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Functions: the unit of decompilation work.
CREATE TABLE IF NOT EXISTS functions (
    name                TEXT PRIMARY KEY,
    source_file         TEXT NOT NULL DEFAULT '',
    worktree_path       TEXT NOT NULL DEFAULT '',
    match_percent       REAL NOT NULL DEFAULT 0,
    status              TEXT NOT NULL DEFAULT 'unclaimed',
    local_scratch_slug  TEXT NOT NULL DEFAULT '',
    prod_scratch_slug   TEXT NOT NULL DEFAULT '',
    claimed_by_agent    TEXT NOT NULL DEFAULT '',
    claimed_at          DATETIME,
    branch              TEXT NOT NULL DEFAULT '',
    commit_hash         TEXT NOT NULL DEFAULT '',
    build_status        TEXT NOT NULL DEFAULT 'unknown',
    build_diagnosis     TEXT NOT NULL DEFAULT '',
    is_committed        INTEGER NOT NULL DEFAULT 0,
    pr_url              TEXT NOT NULL DEFAULT '',
    pr_number           INTEGER NOT NULL DEFAULT 0,
    pr_state            TEXT NOT NULL DEFAULT '',
    pr_review_state     TEXT NOT NULL DEFAULT '',
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (match_percent >= 0 AND match_percent <= 100)
);

CREATE INDEX IF NOT EXISTS idx_functions_status ON functions(status);
CREATE INDEX IF NOT EXISTS idx_functions_worktree ON functions(worktree_path);
CREATE INDEX IF NOT EXISTS idx_functions_match_percent ON functions(match_percent);
CREATE INDEX IF NOT EXISTS idx_functions_is_committed ON functions(is_committed);

-- Claims: at most one active (non-expired) claim per function, enforced in
-- application code rather than a partial unique index (portability with the
-- driver's default build, which does not enable the partial-index extension
-- checks at migration time).
CREATE TABLE IF NOT EXISTS claims (
    function_name TEXT NOT NULL,
    agent_id      TEXT NOT NULL,
    claimed_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at    DATETIME NOT NULL,
    PRIMARY KEY (function_name, agent_id),
    FOREIGN KEY (function_name) REFERENCES functions(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_claims_function ON claims(function_name);
CREATE INDEX IF NOT EXISTS idx_claims_expires_at ON claims(expires_at);

-- Subdirectory locks: one active lock per subdirectory key (worktree subtree).
CREATE TABLE IF NOT EXISTS subdirectory_locks (
    subdirectory_key      TEXT PRIMARY KEY,
    worktree_path         TEXT NOT NULL DEFAULT '',
    branch_name           TEXT NOT NULL DEFAULT '',
    locked_by_agent       TEXT NOT NULL DEFAULT '',
    locked_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    lock_expires_at       DATETIME NOT NULL,
    pending_commits_count INTEGER NOT NULL DEFAULT 0,
    last_commit_at        DATETIME
);

CREATE INDEX IF NOT EXISTS idx_locks_expires_at ON subdirectory_locks(lock_expires_at);

-- Scratches: remote compile sandboxes (decomp.me-style scratch service).
CREATE TABLE IF NOT EXISTS scratches (
    slug          TEXT PRIMARY KEY,
    instance      TEXT NOT NULL,
    base_url      TEXT NOT NULL DEFAULT '',
    function_name TEXT NOT NULL DEFAULT '',
    score         INTEGER NOT NULL DEFAULT 0,
    max_score     INTEGER NOT NULL DEFAULT 0,
    match_percent REAL NOT NULL DEFAULT 0,
    claim_token   TEXT NOT NULL DEFAULT '',
    verified_at   DATETIME,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (function_name) REFERENCES functions(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_scratches_function ON scratches(function_name);
CREATE INDEX IF NOT EXISTS idx_scratches_instance ON scratches(instance);

-- Match history: append-only score observations over time for one scratch.
CREATE TABLE IF NOT EXISTS match_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    scratch_slug  TEXT NOT NULL,
    timestamp     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    score         INTEGER NOT NULL DEFAULT 0,
    max_score     INTEGER NOT NULL DEFAULT 0,
    match_percent REAL NOT NULL DEFAULT 0,
    FOREIGN KEY (scratch_slug) REFERENCES scratches(slug) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_match_history_scratch ON match_history(scratch_slug);
CREATE INDEX IF NOT EXISTS idx_match_history_timestamp ON match_history(timestamp);

-- Branch progress: best known result for a function on a given branch.
CREATE TABLE IF NOT EXISTS branch_progress (
    function_name TEXT NOT NULL,
    branch        TEXT NOT NULL,
    match_percent REAL NOT NULL DEFAULT 0,
    scratch_slug  TEXT NOT NULL DEFAULT '',
    is_committed  INTEGER NOT NULL DEFAULT 0,
    commit_hash   TEXT NOT NULL DEFAULT '',
    agent_id      TEXT NOT NULL DEFAULT '',
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (function_name, branch),
    FOREIGN KEY (function_name) REFERENCES functions(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_branch_progress_function ON branch_progress(function_name);

-- Agents: registry of known orchestrator sessions.
CREATE TABLE IF NOT EXISTS agents (
    agent_id      TEXT PRIMARY KEY,
    worktree_path TEXT NOT NULL DEFAULT '',
    branch_name   TEXT NOT NULL DEFAULT '',
    last_seen_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Audit log: append-only record of every state-changing action.
CREATE TABLE IF NOT EXISTS audit_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    action      TEXT NOT NULL,
    old_value   TEXT NOT NULL DEFAULT '',
    new_value   TEXT NOT NULL DEFAULT '',
    agent_id    TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
`
