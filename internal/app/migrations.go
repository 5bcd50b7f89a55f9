package app

import "civicpulse.app/engagement/internal/db/postgres"

// SQL migrations are embedded in the binary to keep deploys to one artifact.
// petitions, votes and comments belong to the petition platform; the engine
// reads them and only ever writes petitions.status.
var migrations = []postgres.Migration{
	{Version: 1, Name: "members", SQL: migration001Members},
	{Version: 2, Name: "petitions", SQL: migration002Petitions},
	{Version: 3, Name: "point_transactions", SQL: migration003PointTransactions},
	{Version: 4, Name: "member_badges", SQL: migration004Badges},
	{Version: 5, Name: "moderation_logs", SQL: migration005Moderation},
	{Version: 6, Name: "activities", SQL: migration006Activities},
	{Version: 7, Name: "escalation_bonus_settlement", SQL: migration007BonusSettlement},
}

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id UUID PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL,
    avatar_url TEXT,
    total_points BIGINT NOT NULL DEFAULT 0 CHECK (total_points >= 0),
    level INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_leaderboard ON members(total_points DESC, created_at ASC);
`

var migration002Petitions = `
CREATE TABLE IF NOT EXISTS petitions (
    id UUID PRIMARY KEY,
    creator_id UUID NOT NULL REFERENCES members(id),
    title VARCHAR(255) NOT NULL,
    upvotes BIGINT NOT NULL DEFAULT 0,
    downvotes BIGINT NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_petitions_status ON petitions(status);
CREATE INDEX IF NOT EXISTS idx_petitions_creator ON petitions(creator_id);

CREATE TABLE IF NOT EXISTS votes (
    member_id UUID NOT NULL REFERENCES members(id),
    petition_id UUID NOT NULL REFERENCES petitions(id),
    is_upvote BOOLEAN NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (member_id, petition_id)
);

CREATE TABLE IF NOT EXISTS comments (
    id UUID PRIMARY KEY,
    petition_id UUID NOT NULL REFERENCES petitions(id),
    author_id UUID NOT NULL REFERENCES members(id),
    body TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_comments_author ON comments(author_id);
`

var migration003PointTransactions = `
CREATE TABLE IF NOT EXISTS point_transactions (
    id UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members(id),
    points BIGINT NOT NULL CHECK (points > 0),
    action VARCHAR(50) NOT NULL,
    reference_id VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_point_transactions_member ON point_transactions(member_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS uq_point_transactions_reference
    ON point_transactions(member_id, action, reference_id)
    WHERE reference_id IS NOT NULL
      AND action IN ('petition_created', 'petition_voted', 'badge_earned', 'petition_approved');
`

var migration004Badges = `
CREATE TABLE IF NOT EXISTS member_badges (
    member_id UUID NOT NULL REFERENCES members(id),
    badge_id VARCHAR(50) NOT NULL,
    earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (member_id, badge_id)
);
`

var migration005Moderation = `
CREATE TABLE IF NOT EXISTS moderation_logs (
    id UUID PRIMARY KEY,
    petition_id UUID NOT NULL REFERENCES petitions(id),
    action_type VARCHAR(20) NOT NULL,
    reason TEXT NOT NULL,
    triggered_by VARCHAR(30) NOT NULL,
    metadata JSONB NOT NULL DEFAULT '{}',
    performed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (petition_id, action_type)
);
CREATE INDEX IF NOT EXISTS idx_moderation_logs_performed ON moderation_logs(petition_id, performed_at DESC);
`

var migration006Activities = `
CREATE TABLE IF NOT EXISTS activities (
    id UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members(id),
    kind VARCHAR(30) NOT NULL,
    title VARCHAR(255) NOT NULL,
    body TEXT NOT NULL DEFAULT '',
    reference_id VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activities_member ON activities(member_id, created_at DESC);
`

// Escalations logged before this column existed are replayed once by the
// next sweep; their bonus is already in the ledger, so the replay pays nothing.
var migration007BonusSettlement = `
ALTER TABLE moderation_logs ADD COLUMN IF NOT EXISTS bonus_settled BOOLEAN NOT NULL DEFAULT FALSE;
CREATE INDEX IF NOT EXISTS idx_moderation_logs_unsettled ON moderation_logs(performed_at)
    WHERE action_type = 'escalated' AND NOT bonus_settled;
`
