package model

// TelegramUser is a chat user known to the bot. Admins are configured
// by chat id; the flag here is a cached copy for reporting.
type TelegramUser struct {
	Id           int    `json:"id" gorm:"primaryKey;autoIncrement"`
	TgId         int64  `json:"tgId" gorm:"uniqueIndex"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	IsAdmin      bool   `json:"isAdmin"`
	CreatedAt    int64  `json:"createdAt"`
	LastActivity int64  `json:"lastActivity"`
}

// Subscription is the locally persisted state for one panel client.
// TotalUsedBytes accumulates across panel counter resets; LastRawBytes
// holds the raw up+down total seen on the previous sync and is the
// baseline reset detection compares against.
type Subscription struct {
	Id           int    `json:"id" gorm:"primaryKey;autoIncrement"`
	ClientId     string `json:"clientId" gorm:"uniqueIndex;size:64"`
	Email        string `json:"email" gorm:"index"`
	TgId         int64  `json:"tgId" gorm:"index"`
	Enabled      bool   `json:"enabled"`
	DataCapBytes int64  `json:"dataCapBytes"` // 0 = unlimited
	ExpiryTime   int64  `json:"expiryTime"`   // unix ms, 0 = never

	TotalUsedBytes    int64  `json:"totalUsedBytes"`
	LastRawBytes      int64  `json:"lastRawBytes"`
	LastState         string `json:"lastState"`
	LastNotifiedState string `json:"lastNotifiedState"`
	LastSyncAt        int64  `json:"lastSyncAt"`
}

type Setting struct {
	Id    int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" gorm:"uniqueIndex"`
	Value string `json:"value"`
}

// Backup is an audit row for one backup run.
type Backup struct {
	Id        int    `json:"id" gorm:"primaryKey;autoIncrement"`
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"sizeBytes"`
	Encrypted bool   `json:"encrypted"`
	Status    string `json:"status"`
	Error     string `json:"error"`
	CreatedAt int64  `json:"createdAt"`
}
