package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  Each issued
// refresh token embeds the row ID as its jti claim; deleting the row
// revokes the token.
//
// Fields:
//
//	ID        – primary key, embedded in the token as jti.
//	UserID    – owner of the token.
//	ExpiresAt – expiry of the grant (issuance + 1 year).
//	CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	ExpiresAt time.Time
	CreatedAt time.Time
}
