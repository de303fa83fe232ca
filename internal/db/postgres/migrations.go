package postgres

// Migrations is the schema history, embedded for simpler deploys.
// Timestamps are stored without zone, always in UTC.
var Migrations = []Migration{
	{1, "game info", migration001GameInfo},
	{2, "offers", migration002Offers},
	{3, "telegram", migration003Telegram},
	{4, "announcements", migration004Announcements},
}

var migration001GameInfo = `
CREATE TABLE IF NOT EXISTS igdb_info (
    id BIGINT PRIMARY KEY,
    url TEXT,
    name TEXT NOT NULL,
    short_description TEXT,
    release_date TIMESTAMP,
    user_score INTEGER,
    user_ratings INTEGER,
    meta_score INTEGER,
    meta_ratings INTEGER
);
CREATE INDEX IF NOT EXISTS idx_igdb_info_name ON igdb_info(name);

CREATE TABLE IF NOT EXISTS steam_info (
    id BIGINT PRIMARY KEY,
    url TEXT,
    name TEXT NOT NULL,
    short_description TEXT,
    release_date TIMESTAMP,
    genres TEXT,
    publishers TEXT,
    image_url TEXT,
    recommended_price_eur DOUBLE PRECISION,
    percent INTEGER,
    score INTEGER,
    recommendations INTEGER,
    metacritic_score INTEGER,
    metacritic_url TEXT
);
CREATE INDEX IF NOT EXISTS idx_steam_info_name ON steam_info(name);

CREATE TABLE IF NOT EXISTS games (
    id BIGSERIAL PRIMARY KEY,
    igdb_id BIGINT UNIQUE REFERENCES igdb_info(id) ON DELETE SET NULL,
    steam_id BIGINT UNIQUE REFERENCES steam_info(id) ON DELETE SET NULL
);
`

var migration002Offers = `
CREATE TABLE IF NOT EXISTS offers (
    id BIGSERIAL PRIMARY KEY,
    source VARCHAR(32) NOT NULL,
    type VARCHAR(16) NOT NULL,
    duration VARCHAR(16) NOT NULL,
    category VARCHAR(16) NOT NULL DEFAULT 'VALID',
    title TEXT NOT NULL,
    probable_game_name TEXT NOT NULL,
    seen_first TIMESTAMP NOT NULL,
    seen_last TIMESTAMP NOT NULL,
    valid_from TIMESTAMP,
    valid_to TIMESTAMP,
    rawtext JSONB,
    url TEXT,
    img_url TEXT,
    game_id BIGINT REFERENCES games(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_offers_match ON offers(source, type, duration, title);
CREATE INDEX IF NOT EXISTS idx_offers_valid_to ON offers(valid_to);
CREATE INDEX IF NOT EXISTS idx_offers_game_id ON offers(game_id);
`

var migration003Telegram = `
CREATE TABLE IF NOT EXISTS telegram_chats (
    id BIGSERIAL PRIMARY KEY,
    registration_date TIMESTAMP NOT NULL,
    chat_type VARCHAR(16) NOT NULL,
    chat_id BIGINT UNIQUE NOT NULL,
    user_id BIGINT,
    chat_details JSONB,
    user_details JSONB,
    timezone_offset INTEGER NOT NULL DEFAULT 0,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    inactive_reason TEXT,
    offers_received_count INTEGER NOT NULL DEFAULT 0,
    last_announcement_id BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS telegram_subscriptions (
    id BIGSERIAL PRIMARY KEY,
    chat_id BIGINT NOT NULL REFERENCES telegram_chats(id) ON DELETE CASCADE,
    source VARCHAR(32) NOT NULL,
    type VARCHAR(16) NOT NULL,
    duration VARCHAR(16) NOT NULL,
    last_offer_id BIGINT NOT NULL DEFAULT 0,
    UNIQUE (chat_id, source, type, duration)
);
CREATE INDEX IF NOT EXISTS idx_telegram_subscriptions_chat ON telegram_subscriptions(chat_id);
`

var migration004Announcements = `
CREATE TABLE IF NOT EXISTS announcements (
    id BIGSERIAL PRIMARY KEY,
    channel VARCHAR(16) NOT NULL,
    date TIMESTAMP NOT NULL,
    text_markdown TEXT NOT NULL
);
`
