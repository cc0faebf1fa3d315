package model

import "time"

// VerificationToken は大学メールアドレスの所有を証明する単回使用トークンを表す。
// ライターごとに未使用トークンは常に高々1件（新規発行時に既存を無効化する）。
type VerificationToken struct {
	Token           string // 推測不能なランダム値。これ自体が唯一の秘密。
	WriterID        string
	UniversityEmail string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	VerifiedAt      *time.Time // nilは未使用を意味する
}

// Expired は指定時刻においてトークンが期限切れかを返す。
func (t *VerificationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// UniversityRegistryEntry はメールドメインと大学の対応を表す静的な参照データ。
// このコアからは読み取り専用。
type UniversityRegistryEntry struct {
	Domain          string
	InstitutionName string
	Active          bool
}
