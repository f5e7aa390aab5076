package models

// APIToken is an opaque bearer credential for the read API. Tokens are stored
// hashed (sha256, hex) and resolve to a (user, company) pair.
type APIToken struct {
	ID         int64  `db:"id" json:"id"`
	TokenHash  string `db:"token_hash" json:"-"`
	UserID     int64  `db:"userid" json:"userid"`
	CompanyID  int64  `db:"companyid" json:"companyid"`
	Active     bool   `db:"active" json:"active"`
	ValidUntil int64  `db:"valid_until" json:"valid_until"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
}

// Principal is the authenticated identity behind a read-API request.
type Principal struct {
	UserID    int64
	CompanyID int64
	TokenHash string
}
