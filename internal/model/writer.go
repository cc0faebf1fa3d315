package model

import "time"

// VerificationStatus はライタープロフィールの審査状態を表す。
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// WriterProfile は昇格済みアカウントごとに1件存在するライター情報を表す。
// 作成はライター登録（外部コラボレーター）の責務。
// verification系フィールドは認証ワークフローのみが、statusは管理者操作のみが更新する。
type WriterProfile struct {
	ID                 string
	AccountID          string
	Email              string
	DisplayName        string
	VerificationStatus VerificationStatus
	UniversityVerified bool
	VerifiedUniversity string // 未認証の場合は空文字列
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AdminRole は管理者権限の種別を表す。
type AdminRole string

const (
	AdminRoleModerator  AdminRole = "moderator"
	AdminRoleSuperAdmin AdminRole = "super_admin"
)

// AdminGrant は管理者権限の付与を表す。
// このコアからは読み取り専用。付与・剥奪は外部のプロビジョニングが行う。
type AdminGrant struct {
	ID        string
	AccountID string
	Role      AdminRole
	IsActive  bool
	CreatedAt time.Time
}
