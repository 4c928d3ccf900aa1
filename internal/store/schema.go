package store

// BotClient is a provisioned bot identity with its invite quota.
type BotClient struct {
	ID             string `json:"id"`
	Phone          string `json:"phone"`
	AdminPhone     string `json:"admin_phone"`
	Email          string `json:"email"`
	BotID          string `json:"bot_id"`
	InviteCount    int    `json:"invite_count"`
	MaxInviteCount int    `json:"max_invite_count"`
	CreatedAt      int64  `json:"created_at"` // epoch seconds
}

// Member is one participant of a group chat.
type Member struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"is_admin"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// Chat is a group conversation the bot was admitted to.
type Chat struct {
	ID        string   `json:"id"`
	BotID     string   `json:"bot_id"`
	AdminID   string   `json:"admin_id"`
	Members   []Member `json:"members"`
	IsGroup   bool     `json:"is_group"`
	IsDeleted bool     `json:"is_deleted"`
	CreatedAt int64    `json:"created_at"` // epoch seconds
}

// Message is one stored fragment of an inbound message. A single inbound
// message splits into several fragments sharing ID but carrying distinct
// chunk indexes, ciphertext and embeddings.
type Message struct {
	DocID        string    `json:"doc_id"`
	ID           string    `json:"id"`
	ChunkIndex   int       `json:"chunk_index"`
	ChatID       string    `json:"chat_id"`
	Content      string    `json:"content"` // ciphertext, hex(ct)|hex(iv)
	SentBy       string    `json:"sent_by"`
	SentTo       string    `json:"sent_to"`
	MentionedIDs []string  `json:"mentioned_ids"`
	Command      string    `json:"command,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	CreatedAt    int64     `json:"created_at"` // epoch seconds
}

// Schema is applied on every open; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS bot_clients (
	id TEXT PRIMARY KEY,
	phone TEXT UNIQUE NOT NULL,
	admin_phone TEXT DEFAULT '',
	email TEXT DEFAULT '',
	bot_id TEXT NOT NULL,
	invite_count INTEGER NOT NULL DEFAULT 0,
	max_invite_count INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	CHECK (invite_count >= 0),
	CHECK (invite_count <= max_invite_count)
);

CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	bot_id TEXT NOT NULL,
	admin_id TEXT DEFAULT '',
	is_group BOOLEAN NOT NULL DEFAULT 0,
	is_deleted BOOLEAN NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_bot ON chats(bot_id);

CREATE TABLE IF NOT EXISTS chat_members (
	chat_id TEXT NOT NULL,
	member_id TEXT NOT NULL,
	is_admin BOOLEAN NOT NULL DEFAULT 0,
	is_super_admin BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (chat_id, member_id)
);

CREATE TABLE IF NOT EXISTS messages (
	doc_id TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL DEFAULT 0,
	chat_id TEXT NOT NULL,
	content TEXT NOT NULL,
	sent_by TEXT NOT NULL,
	sent_to TEXT NOT NULL,
	mentioned_ids TEXT DEFAULT '[]',
	command TEXT DEFAULT '',
	embedding BLOB,
	created_at INTEGER NOT NULL,
	UNIQUE (id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_created ON messages(chat_id, created_at);
`
